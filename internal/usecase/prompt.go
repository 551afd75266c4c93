package usecase

import (
	"strings"

	"concierge-api/internal/domain"
)

// buildConversation prepends exactly one system message to the caller's
// messages. Caller order is preserved and nothing else is injected.
func buildConversation(systemPrompt string, messages []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(messages)+1)
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	return append(out, messages...)
}

func normalizeSystemPrompt(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
