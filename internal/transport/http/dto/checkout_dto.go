package dto

type CheckoutCreateRequest struct {
	PromptID string `json:"prompt_id"`
}

type CheckoutCreateResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	IntentID  string `json:"intent_id,omitempty"`
}

type CheckoutVerifyResponse struct {
	Purchased     bool   `json:"purchased"`
	ItemID        string `json:"item_id"`
	PaymentStatus string `json:"payment_status"`
}

type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Malformed bool   `json:"malformed,omitempty"`
}
