package model

import "time"

// CatalogItem is a purchasable prompt. InternalID is the storage row id and
// never leaves the storage layer except for legacy repair; CanonicalID is the
// identifier used in checkout metadata and purchase records.
type CatalogItem struct {
	InternalID  int64     `json:"-"`
	CanonicalID string    `json:"prompt_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Industry    string    `json:"industry"`
	Purpose     string    `json:"purpose"`
	Price       int64     `json:"price"`
	IsFree      bool      `json:"is_free"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
