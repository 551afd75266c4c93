package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"concierge-api/internal/domain"
	"concierge-api/internal/metrics"
	"concierge-api/internal/origin"
	"concierge-api/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Response is what every route produces. The Lambda runtime streams Body to
// the caller once the status and headers have been sent.
type Response = events.LambdaFunctionURLStreamingResponse

type ChatForwarder interface {
	Forward(ctx context.Context, in usecase.ChatInput) (*domain.ChatStream, error)
}

type CheckoutStarter interface {
	StartTrial(ctx context.Context, in usecase.StartTrialInput) (usecase.CheckoutOutput, error)
	Subscribe(ctx context.Context, in usecase.SubscribeInput) (usecase.CheckoutOutput, error)
}

type PortalOpener interface {
	Open(ctx context.Context, in usecase.PortalInput) (usecase.PortalOutput, error)
}

type routeFunc func(ctx context.Context, req *request) *Response

type Handler struct {
	origins  *origin.Policy
	chat     ChatForwarder
	checkout CheckoutStarter
	portal   PortalOpener
	routes   map[string]map[string]routeFunc
}

// NewHandler wires the routes. A nil origin policy admits every origin.
func NewHandler(origins *origin.Policy, chat ChatForwarder, checkout CheckoutStarter, portal PortalOpener) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat forwarder must not be nil")
	}
	if checkout == nil {
		return nil, errors.New("handler: checkout service must not be nil")
	}
	if portal == nil {
		return nil, errors.New("handler: portal service must not be nil")
	}
	h := &Handler{
		origins:  origins,
		chat:     chat,
		checkout: checkout,
		portal:   portal,
	}
	h.routes = map[string]map[string]routeFunc{
		"/api/agent": {
			http.MethodOptions: h.preflight,
			http.MethodPost:    h.agentChat,
		},
		"/api/checkout": {
			http.MethodGet:  h.subscribe,
			http.MethodPost: h.subscribe,
		},
		"/api/checkout/start": {
			http.MethodGet: h.startTrial,
		},
		"/api/billing/portal": {
			http.MethodOptions: h.preflight,
			http.MethodPost:    h.openPortal,
		},
	}
	return h, nil
}

// Handle serves one Function URL invocation. Failures are always expressed as
// responses, so the returned error is nil.
func (h *Handler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (resp *Response, _ error) {
	start := time.Now()
	req := newRequest(event)
	correlationID := req.header(correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := slog.With("correlation_id", correlationID, "method", req.method, "path", req.path)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "panic in handler", "err", r, "stack", string(debug.Stack()))
			resp = jsonResponse(http.StatusInternalServerError, errorResponse{Error: fmt.Sprint(r)}, nil)
		}
		resp.Headers[correlationHeader] = correlationID
		metrics.ObserveRequest(h.routeLabel(req.path), resp.StatusCode, start)
		logger.InfoContext(ctx, "request handled", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	}()

	ctx = withLogger(ctx, logger)
	methods, ok := h.routes[req.path]
	if !ok {
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "Not found"}, nil), nil
	}
	route, ok := methods[req.method]
	if !ok {
		return methodNotAllowed(methods), nil
	}
	return route(ctx, req), nil
}

// preflight answers CORS preflights for the browser-facing routes.
func (h *Handler) preflight(_ context.Context, req *request) *Response {
	o := req.header("Origin")
	if !h.origins.Allows(o) {
		return forbidden()
	}
	return &Response{
		StatusCode: http.StatusNoContent,
		Headers:    origin.PreflightHeaders(o),
		Body:       http.NoBody,
	}
}

func methodNotAllowed(methods map[string]routeFunc) *Response {
	allowed := make([]string, 0, len(methods))
	for m := range methods {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}, map[string]string{
		"Allow": strings.Join(allowed, ", "),
	})
}

// routeLabel keeps metric cardinality bounded to the known routes.
func (h *Handler) routeLabel(path string) string {
	if _, ok := h.routes[path]; ok {
		return path
	}
	return "unmatched"
}

type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
