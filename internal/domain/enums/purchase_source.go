package enums

type PurchaseSource string

const (
	PurchaseSourceWebhook PurchaseSource = "webhook"
	PurchaseSourceVerify  PurchaseSource = "verify"
	PurchaseSourceTest    PurchaseSource = "test"
	PurchaseSourceLegacy  PurchaseSource = "legacy"
)
