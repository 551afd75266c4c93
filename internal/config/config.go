// Package config builds the process-wide, read-only configuration. It is
// loaded once at startup and shared by every request.
package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"concierge-api/internal/origin"
)

const (
	DefaultSystemPrompt    = "You are a helpful concierge."
	DefaultModel           = "gpt-4o-mini"
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultApprovalCode    = "PILLARZ"
	DefaultTrialPeriodDays = 7
	DefaultPortalReturnURL = "https://google.com"
)

const (
	openAIKeyParameter       = "openai-api-key"
	stripeSecretKeyParameter = "stripe-secret-key"
)

// SecretGetter resolves a secret by parameter name. paramstore.Client
// satisfies it.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LookupFunc reads a single configuration variable; os.Getenv fits.
type LookupFunc func(key string) string

// Config must not be mutated after Load returns.
type Config struct {
	AllowedOrigins []string
	SystemPrompt   string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	StripeSecretKey string
	// PlanPrices maps plan letters (A, B, C) to Stripe price IDs.
	PlanPrices      map[string]string
	StandardPriceID string
	DiscountPriceID string
	ApprovalCodes   []string
	TrialPeriodDays int64

	BaseURL         string
	SiteURL         string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string

	ParamPrefix string
}

// Load reads configuration through getenv. When PARAM_PREFIX is set and
// secrets is non-nil, secrets missing from the environment are read from the
// parameter store.
func Load(ctx context.Context, getenv LookupFunc, secrets SecretGetter) (*Config, error) {
	if getenv == nil {
		return nil, errors.New("config: lookup func must not be nil")
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	trialDays, err := envInt64(env, "CHECKOUT_TRIAL_DAYS", DefaultTrialPeriodDays)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AllowedOrigins: origin.ParseAllowList(getenv("ALLOWED_ORIGINS")),
		SystemPrompt:   withDefault(env("SYSTEM_PROMPT"), DefaultSystemPrompt),

		OpenAIAPIKey:  env("OPENAI_API_KEY"),
		OpenAIModel:   withDefault(env("OPENAI_MODEL"), DefaultModel),
		OpenAIBaseURL: withDefault(env("OPENAI_BASE_URL"), DefaultOpenAIBaseURL),

		StripeSecretKey: env("STRIPE_SECRET_KEY"),
		PlanPrices: map[string]string{
			"A": env("STRIPE_PRICE_A"),
			"B": env("STRIPE_PRICE_B"),
			"C": env("STRIPE_PRICE_C"),
		},
		StandardPriceID: env("STRIPE_PRICE_ID_STANDARD"),
		DiscountPriceID: env("STRIPE_PRICE_ID_DISCOUNT"),
		ApprovalCodes:   approvalCodes(getenv("APPROVAL_CODES")),
		TrialPeriodDays: trialDays,

		BaseURL:         strings.TrimRight(env("BASE_URL"), "/"),
		SiteURL:         strings.TrimRight(env("SITE_URL"), "/"),
		SuccessURL:      env("STRIPE_SUCCESS_URL"),
		CancelURL:       env("STRIPE_CANCEL_URL"),
		PortalReturnURL: withDefault(env("PORTAL_DEFAULT_RETURN_URL"), DefaultPortalReturnURL),

		ParamPrefix: env("PARAM_PREFIX"),
	}

	if cfg.ParamPrefix != "" && secrets != nil {
		if cfg.OpenAIAPIKey == "" {
			if cfg.OpenAIAPIKey, err = secrets.GetSecret(ctx, openAIKeyParameter); err != nil {
				return nil, fmt.Errorf("config: load openai api key: %w", err)
			}
		}
		if cfg.StripeSecretKey == "" {
			// The payment endpoints degrade to a configuration error without it.
			if key, err := secrets.GetSecret(ctx, stripeSecretKeyParameter); err == nil {
				cfg.StripeSecretKey = key
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every deployment needs.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("config: OPENAI_API_KEY is required")
	}
	if c.TrialPeriodDays < 0 {
		return errors.New("config: CHECKOUT_TRIAL_DAYS must not be negative")
	}
	return nil
}

// PaymentsEnabled reports whether a Stripe secret key is configured.
func (c *Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != ""
}

func approvalCodes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{DefaultApprovalCode}
	}
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, strings.ToUpper(c))
		}
	}
	return codes
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func envInt64(env func(string) string, key string, def int64) (int64, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
