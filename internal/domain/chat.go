package domain

import (
	"io"
	"net/http"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatStream is an open upstream response. Whoever holds it owns Body and must
// close it.
type ChatStream struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
