// Package app assembles the handler from configuration. Both entrypoints
// share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"concierge-api/handler"
	"concierge-api/internal/config"
	"concierge-api/internal/integrations/openai"
	"concierge-api/internal/integrations/paramstore"
	"concierge-api/internal/integrations/stripe"
	"concierge-api/internal/origin"
	"concierge-api/internal/usecase"
)

// LoadConfig reads configuration from the process environment. When
// PARAM_PREFIX is set, missing secrets come from SSM Parameter Store.
func LoadConfig(ctx context.Context) (*config.Config, error) {
	var secrets config.SecretGetter
	if prefix := os.Getenv("PARAM_PREFIX"); prefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		store, err := paramstore.New(awsssm.NewFromConfig(awsCfg), prefix)
		if err != nil {
			return nil, fmt.Errorf("app: create parameter store client: %w", err)
		}
		secrets = store
	}
	return config.Load(ctx, os.Getenv, secrets)
}

// Dependencies overrides the upstream endpoints, mainly for tests.
type Dependencies struct {
	OpenAIOptions []openai.Option
	StripeOptions []stripe.Option
}

// NewHandler builds every client and service the routes need.
func NewHandler(cfg *config.Config, deps Dependencies) (*handler.Handler, error) {
	openaiOpts := append([]openai.Option{
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithModel(cfg.OpenAIModel),
	}, deps.OpenAIOptions...)
	llm, err := openai.NewClient(cfg.OpenAIAPIKey, openaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create openai client: %w", err)
	}

	chat, err := usecase.NewChatService(llm, cfg.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}

	// Services built with nil providers answer with a configuration error.
	var (
		checkoutProvider usecase.CheckoutProvider
		portalProvider   usecase.CustomerPortalProvider
	)
	if cfg.PaymentsEnabled() {
		sc, err := stripe.NewClient(cfg.StripeSecretKey, deps.StripeOptions...)
		if err != nil {
			return nil, fmt.Errorf("app: create stripe client: %w", err)
		}
		checkoutProvider, portalProvider = sc, sc
	} else {
		slog.Warn("STRIPE_SECRET_KEY is not set; payment routes are disabled")
	}

	checkout := usecase.NewCheckoutService(checkoutProvider, usecase.CheckoutConfig{
		PlanPrices:      cfg.PlanPrices,
		StandardPriceID: cfg.StandardPriceID,
		DiscountPriceID: cfg.DiscountPriceID,
		ApprovalCodes:   cfg.ApprovalCodes,
		TrialPeriodDays: cfg.TrialPeriodDays,
		BaseURL:         cfg.BaseURL,
		SiteURL:         cfg.SiteURL,
		SuccessURL:      cfg.SuccessURL,
		CancelURL:       cfg.CancelURL,
	})
	portal := usecase.NewPortalService(portalProvider, cfg.BaseURL, cfg.PortalReturnURL)

	if len(cfg.AllowedOrigins) == 0 {
		slog.Warn("ALLOWED_ORIGINS is empty; every origin is admitted")
	}
	return handler.NewHandler(origin.NewPolicy(cfg.AllowedOrigins), chat, checkout, portal)
}
