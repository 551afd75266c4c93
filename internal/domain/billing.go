package domain

// CheckoutSessionRequest is the provider-agnostic shape of a subscription
// checkout session.
type CheckoutSessionRequest struct {
	PriceID             string
	TrialPeriodDays     int64
	Metadata            map[string]string
	AllowPromotionCodes bool
	SuccessURL          string
	CancelURL           string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Customer struct {
	ID    string
	Email string
}

type PortalSession struct {
	ID  string
	URL string
}
