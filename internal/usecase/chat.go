package usecase

import (
	"context"
	"errors"

	"concierge-api/internal/domain"
)

const (
	defaultSystemPrompt = "You are a helpful concierge."
	upstreamErrorText   = "Upstream error"
)

// ChatStreamer opens a streaming completion for a full conversation.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatStream, error)
}

type ChatService struct {
	llm          ChatStreamer
	systemPrompt string
}

type ChatInput struct {
	Messages []domain.ChatMessage
}

func NewChatService(llm ChatStreamer, systemPrompt string) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: chat streamer must not be nil")
	}
	return &ChatService{
		llm:          llm,
		systemPrompt: normalizeSystemPrompt(systemPrompt, defaultSystemPrompt),
	}, nil
}

// Forward sends the conversation upstream behind the configured system prompt.
// On success the caller owns the returned stream body. No retry is attempted.
func (s *ChatService) Forward(ctx context.Context, in ChatInput) (*domain.ChatStream, error) {
	stream, err := s.llm.StreamChat(ctx, buildConversation(s.systemPrompt, in.Messages))
	if err != nil {
		if _, ok := upstreamStatusCode(err); ok {
			e := newMessageError(ErrorUpstream, "openai_status", upstreamErrorText, err)
			e.Detail = upstreamDetail(err)
			return nil, e
		}
		return nil, newError(ErrorInternal, "openai_request_error", err)
	}
	if stream == nil || stream.Body == nil {
		return nil, newMessageError(ErrorUpstream, "openai_empty_body", upstreamErrorText, nil)
	}
	return stream, nil
}
