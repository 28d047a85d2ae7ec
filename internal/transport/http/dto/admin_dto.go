package dto

import "time"

type AdminPurchaseRecord struct {
	PurchaseItem
	NumericItemID bool   `json:"numeric_item_id"`
	CanonicalID   string `json:"canonical_id,omitempty"`
}

type AdminCheckoutIntent struct {
	ID                string    `json:"id"`
	ItemID            string    `json:"item_id"`
	ProviderSessionID string    `json:"provider_session_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type AdminUserPurchasesResponse struct {
	UserID         string                `json:"user_id"`
	Records        []AdminPurchaseRecord `json:"records"`
	PendingIntents []AdminCheckoutIntent `json:"pending_intents"`
}
