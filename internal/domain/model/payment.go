package model

import "encoding/json"

const (
	PaymentEventCheckoutCompleted     = "checkout.session.completed"
	PaymentEventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	PaymentStatusPaid                 = "paid"

	MetadataUserID = "user_id"
	MetadataItemID = "prompt_id"
)

// PaymentEvent is a provider event whose signature has been checked. Object
// is the raw data object; consumers decode the shape they expect.
type PaymentEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

type PaymentSessionRequest struct {
	UserID        string
	ItemID        string
	ItemName      string
	Description   string
	Amount        int64
	Currency      string
	CustomerEmail string
}

type PaymentSession struct {
	ID            string
	URL           string
	PaymentStatus string
	Metadata      map[string]string
}
