package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"concierge-api/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	// maxErrorBody bounds how much of a failed upstream response is kept as
	// diagnostic detail.
	maxErrorBody = 4096
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ResponseBody returns the diagnostic text read from the failed response.
func (e *HTTPStatusError) ResponseBody() string {
	return e.Body
}

// Client opens streaming chat completions against an OpenAI-compatible API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	model      string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// NewClient creates a Client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: newStreamingHTTPClient(),
		apiKey:     apiKey,
		model:      goopenai.GPT4oMini,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newStreamingHTTPClient bounds the wait for response headers only. An
// overall http.Client.Timeout would cut long streams off mid-body.
func newStreamingHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second
	return &http.Client{Transport: transport}
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return newStreamingHTTPClient()
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Model returns the model identifier sent upstream.
func (c *Client) Model() string {
	return c.model
}

// StreamChat posts messages as a streaming chat completion with the
// captureLead tool attached. On a 2xx response the caller owns the returned
// body. Non-2xx responses are drained into an *HTTPStatusError.
func (c *Client) StreamChat(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatStream, error) {
	body, err := json.Marshal(newChatRequest(c.model, messages))
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return nil, fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("openai: request failed: %w", doErr)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 || res.Body == nil || res.Body == http.NoBody {
		return nil, drainStatusError(res, url)
	}

	return &domain.ChatStream{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
	}, nil
}

func drainStatusError(res *http.Response, url string) error {
	statusErr := &HTTPStatusError{StatusCode: res.StatusCode, URL: url}
	if res.Body != nil {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		_ = res.Body.Close()
		statusErr.Body = string(buf)
	}
	return statusErr
}
