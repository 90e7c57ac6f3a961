// Package core provides the default HTTP sender.
package core

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// NewHTTPSender adapts an injected *http.Client into a Sender. The
// base URL is prepended to each descriptor path. The controller never
// constructs its own client.
func NewHTTPSender(client *http.Client, baseURL string) (Sender, error) {
	if client == nil {
		return nil, Wrap(CodeConfiguration, "http client is required", nil)
	}
	if baseURL == "" {
		return nil, Wrap(CodeConfiguration, "base url is required", nil)
	}
	base := strings.TrimRight(baseURL, "/")
	return func(ctx context.Context, desc *RequestDescriptor) (*Response, error) {
		if desc == nil {
			return nil, ErrInvalidInput
		}
		var body io.Reader
		if len(desc.Body) > 0 {
			body = bytes.NewReader(desc.Body)
		}
		req, err := http.NewRequestWithContext(ctx, desc.Method, base+desc.Path, body)
		if err != nil {
			return nil, err
		}
		for key, values := range desc.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       payload,
		}, nil
	}, nil
}
