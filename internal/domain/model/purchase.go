package model

import (
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
)

type PurchaseRecord struct {
	ID          int64                `json:"id"`
	UserID      string               `json:"user_id"`
	ItemID      string               `json:"item_id"`
	Source      enums.PurchaseSource `json:"source"`
	PurchasedAt time.Time            `json:"purchased_at"`
	IsActive    bool                 `json:"is_active"`
}
