// Package client is the Go SDK for the exile-ledger REST API. External
// collaborators such as the chat-platform listener and the role assigner use
// it instead of hand-rolling HTTP calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// debugTransport logs full request/response dumps when LEDGER_DEBUG is set.
type debugTransport struct{ base http.RoundTripper }

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).
			Str("request_dump", string(reqDump)).Msg("HTTP request")
	}
	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).
			Msg("HTTP request failed")
		return nil, err
	}
	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).
			Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).
			Msg("HTTP response")
	}
	return resp, nil
}

// Client talks to one ledger service instance. All methods are synchronous
// and safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client. Options are applied in order; a failing option
// panics, so misconfiguration surfaces at startup rather than on first call.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		panic("client: baseURL cannot be empty")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	if os.Getenv("LEDGER_DEBUG") == "true" {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			panic(err)
		}
	}
	return c
}

// get issues a GET and decodes a 200 response into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, http.StatusOK, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out
// when the status matches want.
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, want int, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, body, want, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, want int, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var reader *bytes.Buffer
	if body == nil {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBuffer(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
