package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"concierge-api/internal/usecase"
)

type portalRequest struct {
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
	ReturnURL  string `json:"returnUrl"`
}

func (h *Handler) startTrial(ctx context.Context, req *request) *Response {
	out, err := h.checkout.StartTrial(ctx, usecase.StartTrialInput{
		Plan: req.query.Get("plan"),
		Code: req.query.Get("code"),
	})
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "trial checkout failed", "err", err)
		return errorResult(err, checkoutStatus, nil)
	}
	loggerFrom(ctx).InfoContext(ctx, "checkout session created", "session_id", out.SessionID)
	return redirect(out.URL)
}

// subscribe redirects browsers that navigate here and answers scripted POSTs
// with the session URL.
func (h *Handler) subscribe(ctx context.Context, req *request) *Response {
	out, err := h.checkout.Subscribe(ctx, usecase.SubscribeInput{Code: req.query.Get("code")})
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "checkout failed", "err", err)
		return errorResult(err, checkoutStatus, nil)
	}
	loggerFrom(ctx).InfoContext(ctx, "checkout session created", "session_id", out.SessionID)
	if req.method == http.MethodGet {
		return redirect(out.URL)
	}
	return jsonResponse(http.StatusOK, urlResponse{URL: out.URL}, nil)
}

func (h *Handler) openPortal(ctx context.Context, req *request) *Response {
	o := req.header("Origin")
	if !h.origins.Allows(o) {
		loggerFrom(ctx).WarnContext(ctx, "origin rejected", "origin", o)
		return forbidden()
	}
	cors := corsHeaders(o)

	var body portalRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"}, cors)
	}

	out, err := h.portal.Open(ctx, usecase.PortalInput{
		CustomerID: body.CustomerID,
		Email:      body.Email,
		ReturnURL:  body.ReturnURL,
	})
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "portal session failed", "err", err)
		return errorResult(err, portalStatus, cors)
	}
	return jsonResponse(http.StatusOK, urlResponse{URL: out.URL}, cors)
}
