// Package stripe adapts the Stripe API to the checkout and billing-portal
// flows.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"concierge-api/internal/domain"
)

// APIError carries the human-readable message of a failed Stripe call.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client wraps a Stripe API client.
type Client struct {
	api      *client.API
	backends *stripego.Backends
}

type Option func(*Client)

// WithBackendURL points every Stripe backend at url, e.g. a local mock.
func WithBackendURL(url string) Option {
	return func(c *Client) {
		backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
			URL:               stripego.String(url),
			MaxNetworkRetries: stripego.Int64(0),
		})
		c.backends = &stripego.Backends{API: backend, Connect: backend, Uploads: backend}
	}
}

// NewClient creates a Stripe client for secretKey. Network retries are off.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.backends == nil {
		backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
			MaxNetworkRetries: stripego.Int64(0),
		})
		c.backends = &stripego.Backends{
			API:     backend,
			Connect: stripego.GetBackend(stripego.ConnectBackend),
			Uploads: stripego.GetBackend(stripego.UploadsBackend),
		}
	}
	c.api = client.New(secretKey, c.backends)
	return c, nil
}

// CreateCheckoutSession creates a subscription-mode checkout session with a
// single line item.
func (c *Client) CreateCheckoutSession(ctx context.Context, in domain.CheckoutSessionRequest) (domain.CheckoutSession, error) {
	if strings.TrimSpace(in.PriceID) == "" {
		return domain.CheckoutSession{}, errors.New("stripe: price id is required")
	}

	params := &stripego.CheckoutSessionParams{
		Mode: stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{Price: stripego.String(in.PriceID), Quantity: stripego.Int64(1)},
		},
		SuccessURL: stripego.String(in.SuccessURL),
		CancelURL:  stripego.String(in.CancelURL),
	}
	params.Context = ctx
	if in.AllowPromotionCodes {
		params.AllowPromotionCodes = stripego.Bool(true)
	}
	if in.TrialPeriodDays > 0 || len(in.Metadata) > 0 {
		data := &stripego.CheckoutSessionSubscriptionDataParams{}
		if in.TrialPeriodDays > 0 {
			data.TrialPeriodDays = stripego.Int64(in.TrialPeriodDays)
		}
		if len(in.Metadata) > 0 {
			data.Metadata = in.Metadata
		}
		params.SubscriptionData = data
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return domain.CheckoutSession{}, wrapError("create checkout session", err)
	}
	return domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// GetCustomer retrieves a customer by ID. Deleted customers yield (nil, nil).
func (c *Client) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	params := &stripego.CustomerParams{}
	params.Context = ctx
	cust, err := c.api.Customers.Get(id, params)
	if err != nil {
		return nil, wrapError("retrieve customer", err)
	}
	if cust == nil || cust.Deleted {
		return nil, nil
	}
	return &domain.Customer{ID: cust.ID, Email: cust.Email}, nil
}

// FindCustomerByEmail returns the first customer with email, or (nil, nil).
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	params := &stripego.CustomerListParams{Email: stripego.String(email)}
	params.Limit = stripego.Int64(1)
	params.Context = ctx

	it := c.api.Customers.List(params)
	if it.Next() {
		cust := it.Customer()
		return &domain.Customer{ID: cust.ID, Email: cust.Email}, nil
	}
	if err := it.Err(); err != nil {
		return nil, wrapError("list customers", err)
	}
	return nil, nil
}

func (c *Client) CreateCustomer(ctx context.Context, email string) (*domain.Customer, error) {
	params := &stripego.CustomerParams{Email: stripego.String(email)}
	params.Context = ctx
	cust, err := c.api.Customers.New(params)
	if err != nil {
		return nil, wrapError("create customer", err)
	}
	return &domain.Customer{ID: cust.ID, Email: cust.Email}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (domain.PortalSession, error) {
	params := &stripego.BillingPortalSessionParams{
		Customer:  stripego.String(customerID),
		ReturnURL: stripego.String(returnURL),
	}
	params.Context = ctx
	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return domain.PortalSession{}, wrapError("create billing portal session", err)
	}
	return domain.PortalSession{ID: session.ID, URL: session.URL}, nil
}

func wrapError(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return &APIError{Op: op, StatusCode: stripeErr.HTTPStatusCode, Message: stripeErr.Msg, Err: err}
	}
	return &APIError{Op: op, Message: fmt.Sprintf("stripe: %s: %v", op, err), Err: err}
}
