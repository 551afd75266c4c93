package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"concierge-api/internal/domain"
	"concierge-api/internal/origin"
	"concierge-api/internal/relay"
	"concierge-api/internal/usecase"
)

type agentRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// agentChat forwards the conversation and relays the upstream event stream.
func (h *Handler) agentChat(ctx context.Context, req *request) *Response {
	o := req.header("Origin")
	if !h.origins.Allows(o) {
		loggerFrom(ctx).WarnContext(ctx, "origin rejected", "origin", o)
		return forbidden()
	}
	cors := corsHeaders(o)

	in := usecase.ChatInput{Messages: decodeMessages(req.body)}
	stream, err := h.chat.Forward(ctx, in)
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "chat forward failed", "err", err)
		return errorResult(err, chatStatus, cors)
	}

	headers, cookies := streamHeaders(stream.Header, cors[origin.HeaderAllowOrigin])
	return &Response{
		StatusCode: stream.StatusCode,
		Headers:    headers,
		Cookies:    cookies,
		Body:       relay.Pipe(ctx, stream.Body),
	}
}

// decodeMessages is deliberately lenient: an unparsable body, a missing
// messages field, or a non-array value all yield an empty conversation.
// Elements that are not role/content objects are dropped.
func decodeMessages(body []byte) []domain.ChatMessage {
	var payload agentRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return []domain.ChatMessage{}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(payload.Messages, &raw); err != nil {
		return []domain.ChatMessage{}
	}
	out := make([]domain.ChatMessage, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(string(r)) == "null" {
			continue
		}
		var m domain.ChatMessage
		if err := json.Unmarshal(r, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// streamHeaders copies the upstream headers and overrides the ones the
// browser relies on for an event stream.
func streamHeaders(upstream http.Header, allowOrigin string) (map[string]string, []string) {
	headers := make(map[string]string, len(upstream)+4)
	var cookies []string
	for k, vs := range upstream {
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			cookies = append(cookies, vs...)
			continue
		}
		headers[http.CanonicalHeaderKey(k)] = strings.Join(vs, ", ")
	}
	delete(headers, "Content-Length")
	headers[origin.HeaderAllowOrigin] = allowOrigin
	headers["Cache-Control"] = "no-cache"
	headers["Content-Type"] = "text/event-stream; charset=utf-8"
	headers["Connection"] = "keep-alive"
	return headers, cookies
}
