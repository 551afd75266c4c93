// Package httpadapter serves a Lambda Function URL streaming handler from a
// plain net/http server.
package httpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

const maxRequestBody = 1 << 20

// HandlerFunc matches handler.Handler.Handle.
type HandlerFunc func(ctx context.Context, req events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error)

type Adapter struct {
	handle HandlerFunc
}

func New(handle HandlerFunc) *Adapter {
	return &Adapter{handle: handle}
}

func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	event, err := toEvent(r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	resp, err := a.handle(r.Context(), event)
	if err != nil {
		slog.ErrorContext(r.Context(), "handler returned error", "err", err)
		writeError(w, http.StatusBadGateway, "internal error")
		return
	}
	if closer, ok := resp.Body.(io.Closer); ok {
		defer closer.Close()
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	for _, c := range resp.Cookies {
		w.Header().Add("Set-Cookie", c)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body == nil {
		return
	}

	if err := copyFlushing(w, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(r.Context(), "response stream ended early", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// copyFlushing writes each chunk as soon as it is read so event streams reach
// the client without delay. It stops on the first read or write failure.
func copyFlushing(w http.ResponseWriter, body io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func toEvent(r *http.Request) (events.LambdaFunctionURLRequest, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
		if err != nil {
			return events.LambdaFunctionURLRequest{}, err
		}
		if len(b) > maxRequestBody {
			return events.LambdaFunctionURLRequest{}, errors.New("httpadapter: request body too large")
		}
		body = b
	}

	headers := make(map[string]string, len(r.Header))
	var cookies []string
	for k, vs := range r.Header {
		if strings.EqualFold(k, "Cookie") {
			cookies = append(cookies, vs...)
			continue
		}
		headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}

	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		query[k] = strings.Join(vs, ",")
	}

	event := events.LambdaFunctionURLRequest{
		Version:               "2.0",
		RawPath:               r.URL.Path,
		RawQueryString:        r.URL.RawQuery,
		Cookies:               cookies,
		Headers:               headers,
		QueryStringParameters: query,
	}
	if utf8.Valid(body) {
		event.Body = string(body)
	} else {
		event.Body = base64.StdEncoding.EncodeToString(body)
		event.IsBase64Encoded = true
	}
	event.RequestContext.HTTP.Method = r.Method
	event.RequestContext.HTTP.Path = r.URL.Path
	event.RequestContext.HTTP.Protocol = r.Proto
	event.RequestContext.HTTP.SourceIP = r.RemoteAddr
	event.RequestContext.HTTP.UserAgent = r.UserAgent()
	return event, nil
}
