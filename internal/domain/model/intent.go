package model

import (
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
)

type CheckoutIntent struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	ItemID            string             `json:"item_id"`
	ProviderSessionID string             `json:"provider_session_id"`
	Status            enums.IntentStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}
