package usecase

import (
	"context"
	"strings"

	"concierge-api/internal/domain"
)

// CustomerPortalProvider resolves customers and opens billing-portal sessions.
// GetCustomer and FindCustomerByEmail return (nil, nil) when nothing usable
// exists.
type CustomerPortalProvider interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, email string) (*domain.Customer, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (domain.PortalSession, error)
}

type PortalService struct {
	provider          CustomerPortalProvider
	defaultReturnURLs []string
}

type PortalInput struct {
	CustomerID string
	Email      string
	ReturnURL  string
}

type PortalOutput struct {
	URL string
}

// NewPortalService accepts a nil provider; every call then fails with
// ErrorNotConfigured. defaultReturnURLs are tried in order when the caller
// gives none.
func NewPortalService(provider CustomerPortalProvider, defaultReturnURLs ...string) *PortalService {
	return &PortalService{provider: provider, defaultReturnURLs: defaultReturnURLs}
}

// Open resolves the customer by ID, else by email (creating one when no
// customer has that email), and opens a portal session for it.
func (s *PortalService) Open(ctx context.Context, in PortalInput) (PortalOutput, error) {
	if s.provider == nil {
		return PortalOutput{}, newMessageError(ErrorNotConfigured, "missing_stripe_key", "Missing STRIPE_SECRET_KEY", nil)
	}

	customer, err := s.resolveCustomer(ctx, strings.TrimSpace(in.CustomerID), strings.TrimSpace(in.Email))
	if err != nil {
		return PortalOutput{}, newError(ErrorPayment, "stripe_customer_error", err)
	}
	if customer == nil {
		return PortalOutput{}, newMessageError(ErrorInvalidInput, "customer_not_found", "Customer not found or could not be created.", nil)
	}

	session, err := s.provider.CreatePortalSession(ctx, customer.ID, s.returnURL(in.ReturnURL))
	if err != nil {
		return PortalOutput{}, newError(ErrorPayment, "stripe_portal_error", err)
	}
	return PortalOutput{URL: session.URL}, nil
}

func (s *PortalService) resolveCustomer(ctx context.Context, id, email string) (*domain.Customer, error) {
	switch {
	case id != "":
		return s.provider.GetCustomer(ctx, id)
	case email != "":
		customer, err := s.provider.FindCustomerByEmail(ctx, email)
		if err != nil || customer != nil {
			return customer, err
		}
		return s.provider.CreateCustomer(ctx, email)
	default:
		return nil, nil
	}
}

func (s *PortalService) returnURL(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	for _, u := range s.defaultReturnURLs {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}
