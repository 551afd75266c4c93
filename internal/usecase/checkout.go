package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"

	"concierge-api/internal/domain"
)

const (
	defaultPlan          = "A"
	defaultApprovalCode  = "NA"
	approvalMetadataKey  = "approval_code"
	checkoutSessionToken = "{CHECKOUT_SESSION_ID}"
)

// CheckoutProvider creates hosted checkout sessions.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, in domain.CheckoutSessionRequest) (domain.CheckoutSession, error)
}

// CheckoutConfig is the read-only subset of configuration the checkout flows
// branch on.
type CheckoutConfig struct {
	PlanPrices      map[string]string
	StandardPriceID string
	DiscountPriceID string
	ApprovalCodes   []string
	TrialPeriodDays int64
	BaseURL         string
	SiteURL         string
	SuccessURL      string
	CancelURL       string
}

type CheckoutService struct {
	provider CheckoutProvider
	cfg      CheckoutConfig
}

type StartTrialInput struct {
	Plan string
	Code string
}

type SubscribeInput struct {
	Code string
}

type CheckoutOutput struct {
	SessionID string
	URL       string
}

// NewCheckoutService accepts a nil provider; every call then fails with
// ErrorNotConfigured.
func NewCheckoutService(provider CheckoutProvider, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{provider: provider, cfg: cfg}
}

// StartTrial opens a subscription checkout with a free trial for one of the
// lettered plans, tagging the subscription with the approval code.
func (s *CheckoutService) StartTrial(ctx context.Context, in StartTrialInput) (CheckoutOutput, error) {
	plan := normalizePlan(in.Plan)
	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = defaultApprovalCode
	}

	price := s.cfg.PlanPrices[plan]
	if price == "" {
		return CheckoutOutput{}, newMessageError(ErrorInvalidInput, "missing_plan_price", "Missing Stripe price for plan", nil)
	}
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	if base == "" {
		return CheckoutOutput{}, newMessageError(ErrorNotConfigured, "missing_base_url", "Missing BASE_URL", nil)
	}

	return s.create(ctx, domain.CheckoutSessionRequest{
		PriceID:             price,
		TrialPeriodDays:     s.cfg.TrialPeriodDays,
		Metadata:            map[string]string{approvalMetadataKey: code},
		AllowPromotionCodes: true,
		SuccessURL:          base + "/billing/success?session_id=" + checkoutSessionToken,
		CancelURL:           base + "/billing/canceled",
	})
}

// Subscribe opens a plain subscription checkout. Approved codes unlock the
// discount price when one is configured.
func (s *CheckoutService) Subscribe(ctx context.Context, in SubscribeInput) (CheckoutOutput, error) {
	price := s.pickPrice(in.Code)
	if price == "" {
		return CheckoutOutput{}, newMessageError(ErrorInvalidInput, "missing_price_id", "Missing Price ID", nil)
	}
	success, cancel := s.redirectURLs()
	if success == "" || cancel == "" {
		return CheckoutOutput{}, newMessageError(ErrorNotConfigured, "missing_redirect_urls", "Missing checkout redirect URLs", nil)
	}

	return s.create(ctx, domain.CheckoutSessionRequest{
		PriceID:    price,
		SuccessURL: success,
		CancelURL:  cancel,
	})
}

func (s *CheckoutService) create(ctx context.Context, req domain.CheckoutSessionRequest) (CheckoutOutput, error) {
	if s.provider == nil {
		return CheckoutOutput{}, newMessageError(ErrorNotConfigured, "missing_stripe_key", "Missing STRIPE_SECRET_KEY", nil)
	}
	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutOutput{}, newError(ErrorPayment, "stripe_checkout_error", err)
	}
	if session.URL == "" {
		return CheckoutOutput{}, newError(ErrorPayment, "stripe_checkout_missing_url", errors.New("checkout session has no url"))
	}
	return CheckoutOutput{SessionID: session.ID, URL: session.URL}, nil
}

func (s *CheckoutService) pickPrice(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code != "" && s.cfg.DiscountPriceID != "" && slices.Contains(s.cfg.ApprovalCodes, code) {
		return s.cfg.DiscountPriceID
	}
	return s.cfg.StandardPriceID
}

func (s *CheckoutService) redirectURLs() (success, cancel string) {
	base := strings.TrimRight(s.cfg.SiteURL, "/")
	if base == "" {
		base = strings.TrimRight(s.cfg.BaseURL, "/")
	}
	success, cancel = s.cfg.SuccessURL, s.cfg.CancelURL
	if success == "" && base != "" {
		success = base + "/success"
	}
	if cancel == "" && base != "" {
		cancel = base + "/cancel"
	}
	return success, cancel
}

func normalizePlan(plan string) string {
	plan = strings.ToUpper(strings.TrimSpace(plan))
	switch plan {
	case "A", "B", "C":
		return plan
	default:
		return defaultPlan
	}
}
