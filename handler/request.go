package handler

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

type request struct {
	method  string
	path    string
	headers map[string]string
	query   url.Values
	body    []byte
}

func newRequest(event events.LambdaFunctionURLRequest) *request {
	method := strings.ToUpper(event.RequestContext.HTTP.Method)
	if method == "" {
		method = http.MethodGet
	}
	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	headers := make(map[string]string, len(event.Headers))
	for k, v := range event.Headers {
		headers[strings.ToLower(k)] = v
	}

	query, err := url.ParseQuery(event.RawQueryString)
	if err != nil || len(query) == 0 {
		query = make(url.Values, len(event.QueryStringParameters))
		for k, v := range event.QueryStringParameters {
			query.Set(k, v)
		}
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			decoded = nil
		}
		body = decoded
	}

	return &request{
		method:  method,
		path:    path,
		headers: headers,
		query:   query,
		body:    body,
	}
}

// header looks up a request header case-insensitively.
func (r *request) header(name string) string {
	return r.headers[strings.ToLower(name)]
}
