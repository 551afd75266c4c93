package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"concierge-api/internal/metrics"
	"concierge-api/internal/origin"
	"concierge-api/internal/usecase"
)

type errorResponse struct {
	Error  string  `json:"error"`
	Detail *string `json:"detail,omitempty"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func jsonResponse(status int, v any, headers map[string]string) *Response {
	out := map[string]string{"Content-Type": "application/json"}
	for k, val := range headers {
		out[k] = val
	}
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(`{"error":"internal error"}`)
		status = http.StatusInternalServerError
	}
	return &Response{
		StatusCode: status,
		Headers:    out,
		Body:       bytes.NewReader(b),
	}
}

// forbidden rejects a request from an origin outside the allow-list. It
// carries no body and no CORS headers.
func forbidden() *Response {
	return &Response{
		StatusCode: http.StatusForbidden,
		Headers:    map[string]string{},
		Body:       http.NoBody,
	}
}

func redirect(location string) *Response {
	return &Response{
		StatusCode: http.StatusSeeOther,
		Headers:    map[string]string{"Location": location},
		Body:       http.NoBody,
	}
}

func corsHeaders(o string) map[string]string {
	return map[string]string{origin.HeaderAllowOrigin: origin.AllowOrigin(o)}
}

// statusPolicy maps error codes whose HTTP status differs per route.
type statusPolicy struct {
	payment int
}

var (
	chatStatus     = statusPolicy{}
	checkoutStatus = statusPolicy{payment: http.StatusInternalServerError}
	portalStatus   = statusPolicy{payment: http.StatusBadRequest}
)

func (p statusPolicy) status(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorPayment:
		if p.payment != 0 {
			return p.payment
		}
	}
	return http.StatusInternalServerError
}

// errorResult converts a service error into the JSON envelope. The upstream
// detail is included only for upstream failures.
func errorResult(err error, policy statusPolicy, headers map[string]string) *Response {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: err.Error()}, headers)
	}

	body := errorResponse{Error: ucErr.PublicMessage()}
	switch ucErr.Code {
	case usecase.ErrorUpstream:
		detail := ucErr.Detail
		body.Detail = &detail
		metrics.UpstreamError("openai")
	case usecase.ErrorPayment:
		metrics.UpstreamError("stripe")
	}
	return jsonResponse(policy.status(ucErr.Code), body, headers)
}
