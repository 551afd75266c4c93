package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"concierge-api/internal/domain"
	"concierge-api/internal/origin"
	"concierge-api/internal/usecase"
)

type stubChat struct {
	stream *domain.ChatStream
	err    error
	in     usecase.ChatInput
	calls  int
}

func (s *stubChat) Forward(_ context.Context, in usecase.ChatInput) (*domain.ChatStream, error) {
	s.calls++
	s.in = in
	return s.stream, s.err
}

type stubCheckout struct {
	out         usecase.CheckoutOutput
	err         error
	trialIn     usecase.StartTrialInput
	subscribeIn usecase.SubscribeInput
}

func (s *stubCheckout) StartTrial(_ context.Context, in usecase.StartTrialInput) (usecase.CheckoutOutput, error) {
	s.trialIn = in
	return s.out, s.err
}

func (s *stubCheckout) Subscribe(_ context.Context, in usecase.SubscribeInput) (usecase.CheckoutOutput, error) {
	s.subscribeIn = in
	return s.out, s.err
}

type stubPortal struct {
	out   usecase.PortalOutput
	err   error
	in    usecase.PortalInput
	calls int
}

func (s *stubPortal) Open(_ context.Context, in usecase.PortalInput) (usecase.PortalOutput, error) {
	s.calls++
	s.in = in
	return s.out, s.err
}

type fixture struct {
	h        *Handler
	chat     *stubChat
	checkout *stubCheckout
	portal   *stubPortal
}

func newFixture(t *testing.T, allowed ...string) *fixture {
	t.Helper()
	f := &fixture{chat: &stubChat{}, checkout: &stubCheckout{}, portal: &stubPortal{}}
	h, err := NewHandler(origin.NewPolicy(allowed), f.chat, f.checkout, f.portal)
	require.NoError(t, err)
	f.h = h
	return f
}

func makeEvent(method, path, body string) events.LambdaFunctionURLRequest {
	e := events.LambdaFunctionURLRequest{
		RawPath: path,
		Headers: map[string]string{"content-type": "application/json"},
		Body:    body,
	}
	e.RequestContext.HTTP.Method = method
	e.RequestContext.HTTP.Path = path
	return e
}

func readBody(t *testing.T, resp *Response) string {
	t.Helper()
	require.NotNil(t, resp.Body)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func parseBody[T any](t *testing.T, resp *Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, nil, &stubCheckout{}, &stubPortal{})
	require.Error(t, err)
	_, err = NewHandler(nil, &stubChat{}, nil, &stubPortal{})
	require.Error(t, err)
	_, err = NewHandler(nil, &stubChat{}, &stubCheckout{}, nil)
	require.Error(t, err)

	h, err := NewHandler(nil, &stubChat{}, &stubCheckout{}, &stubPortal{})
	require.NoError(t, err)
	require.NotNil(t, h)
}

func TestHandle_UnknownPath(t *testing.T) {
	f := newFixture(t)

	resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodGet, "/nope", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Not found", parseBody[errorResponse](t, resp).Error)
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/agent", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, "OPTIONS, POST", resp.Headers["Allow"])
	require.Equal(t, "Method not allowed", parseBody[errorResponse](t, resp).Error)
	require.Zero(t, f.chat.calls)
}

func TestHandle_TrailingSlashIsIgnored(t *testing.T) {
	f := newFixture(t)

	resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodOptions, "/api/agent/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandle_GeneratesCorrelationID(t *testing.T) {
	f := newFixture(t)

	resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodGet, "/nope", ""))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	f := newFixture(t, "https://site.example")

	event := makeEvent(http.MethodOptions, "/api/agent", "")
	event.Headers["x-correlation-id"] = "corr-123"
	event.Headers["origin"] = "https://evil.example"
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.h.routes["/boom"] = map[string]routeFunc{
		http.MethodGet: func(context.Context, *request) *Response { panic("kaboom") },
	}

	resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodGet, "/boom", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "kaboom", parseBody[errorResponse](t, resp).Error)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_StartTrialRedirects(t *testing.T) {
	f := newFixture(t)
	f.checkout.out = usecase.CheckoutOutput{SessionID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}

	event := makeEvent(http.MethodGet, "/api/checkout/start", "")
	event.RawQueryString = "plan=b&code=VIP"
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "https://checkout.stripe.test/cs_1", resp.Headers["Location"])
	require.Equal(t, usecase.StartTrialInput{Plan: "b", Code: "VIP"}, f.checkout.trialIn)
}

func TestHandle_StartTrialUsesParsedQueryParameters(t *testing.T) {
	f := newFixture(t)
	f.checkout.out = usecase.CheckoutOutput{URL: "https://checkout.stripe.test/cs_2"}

	event := makeEvent(http.MethodGet, "/api/checkout/start", "")
	event.QueryStringParameters = map[string]string{"plan": "C"}
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "C", f.checkout.trialIn.Plan)
}

func TestHandle_SubscribeGetRedirectsPostReturnsURL(t *testing.T) {
	f := newFixture(t)
	f.checkout.out = usecase.CheckoutOutput{URL: "https://checkout.stripe.test/cs_3"}

	get := makeEvent(http.MethodGet, "/api/checkout", "")
	get.RawQueryString = "code=pillarz"
	resp, err := f.h.Handle(context.Background(), get)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "https://checkout.stripe.test/cs_3", resp.Headers["Location"])
	require.Equal(t, "pillarz", f.checkout.subscribeIn.Code)

	resp, err = f.h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/checkout", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "https://checkout.stripe.test/cs_3", parseBody[urlResponse](t, resp).URL)
}

func TestHandle_CheckoutMapsErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "missing price", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_price_id", Message: "Missing Price ID"}, status: http.StatusBadRequest, message: "Missing Price ID"},
		{name: "not configured", err: &usecase.Error{Code: usecase.ErrorNotConfigured, Reason: "missing_stripe_key", Message: "Missing STRIPE_SECRET_KEY"}, status: http.StatusInternalServerError, message: "Missing STRIPE_SECRET_KEY"},
		{name: "stripe failure", err: &usecase.Error{Code: usecase.ErrorPayment, Reason: "stripe_checkout_error", Err: errors.New("No such price")}, status: http.StatusInternalServerError, message: "No such price"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, message: "boom"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.checkout.err = tc.err

			resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/checkout", ""))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp)
			require.Equal(t, tc.message, out.Error)
			require.Nil(t, out.Detail)
		})
	}
}

func TestHandle_PortalPreflight(t *testing.T) {
	f := newFixture(t, "https://site.example")

	event := makeEvent(http.MethodOptions, "/api/billing/portal", "")
	event.Headers["origin"] = "https://site.example"
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://site.example", resp.Headers[origin.HeaderAllowOrigin])
	require.Equal(t, "POST, OPTIONS", resp.Headers[origin.HeaderAllowMethods])
}

func TestHandle_PortalOpensSession(t *testing.T) {
	f := newFixture(t, "https://site.example")
	f.portal.out = usecase.PortalOutput{URL: "https://billing.stripe.test/p_1"}

	event := makeEvent(http.MethodPost, "/api/billing/portal", `{"email":"a@b.test","returnUrl":"https://site.example/account"}`)
	event.Headers["origin"] = "https://site.example"
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "https://site.example", resp.Headers[origin.HeaderAllowOrigin])
	require.Equal(t, "https://billing.stripe.test/p_1", parseBody[urlResponse](t, resp).URL)
	require.Equal(t, usecase.PortalInput{Email: "a@b.test", ReturnURL: "https://site.example/account"}, f.portal.in)
}

func TestHandle_PortalDecodesBase64Body(t *testing.T) {
	f := newFixture(t)
	f.portal.out = usecase.PortalOutput{URL: "https://billing.stripe.test/p_2"}

	event := makeEvent(http.MethodPost, "/api/billing/portal", base64.StdEncoding.EncodeToString([]byte(`{"customerId":"cus_1"}`)))
	event.IsBase64Encoded = true
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "cus_1", f.portal.in.CustomerID)
	require.Equal(t, "*", resp.Headers[origin.HeaderAllowOrigin])
}

func TestHandle_PortalRejectsInvalidJSON(t *testing.T) {
	f := newFixture(t)

	resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/billing/portal", "not-json"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "*", resp.Headers[origin.HeaderAllowOrigin])
	require.Zero(t, f.portal.calls)
}

func TestHandle_PortalRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, "https://site.example")

	event := makeEvent(http.MethodPost, "/api/billing/portal", `{"email":"a@b.test"}`)
	event.Headers["origin"] = "https://evil.example"
	resp, err := f.h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Empty(t, resp.Headers[origin.HeaderAllowOrigin])
	require.Empty(t, readBody(t, resp))
	require.Zero(t, f.portal.calls)
}

func TestHandle_PortalMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "customer not found", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Message: "Customer not found or could not be created."}, status: http.StatusBadRequest},
		{name: "stripe failure", err: &usecase.Error{Code: usecase.ErrorPayment, Err: errors.New("No such customer")}, status: http.StatusBadRequest},
		{name: "not configured", err: &usecase.Error{Code: usecase.ErrorNotConfigured, Message: "Missing STRIPE_SECRET_KEY"}, status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.portal.err = tc.err

			resp, err := f.h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/billing/portal", `{}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, "*", resp.Headers[origin.HeaderAllowOrigin])
		})
	}
}
