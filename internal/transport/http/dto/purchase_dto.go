package dto

import "time"

type PurchaseItem struct {
	ID          int64     `json:"id"`
	ItemID      string    `json:"item_id"`
	Source      string    `json:"source"`
	PurchasedAt time.Time `json:"purchased_at"`
	IsActive    bool      `json:"is_active"`
}

type PurchaseListResponse struct {
	Items []PurchaseItem `json:"items"`
}

type TestPurchaseRequest struct {
	PromptID string `json:"prompt_id"`
}

type TestPurchaseResponse struct {
	OK       bool         `json:"ok"`
	Created  bool         `json:"created"`
	Purchase PurchaseItem `json:"purchase"`
}

type PromptAccessResponse struct {
	PromptID  string `json:"prompt_id"`
	Name      string `json:"name"`
	IsFree    bool   `json:"is_free"`
	Price     int64  `json:"price"`
	Purchased bool   `json:"purchased"`
	Available bool   `json:"available"`
}
