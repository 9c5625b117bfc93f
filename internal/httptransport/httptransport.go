// Package httptransport sends operations to a GraphQL server over HTTP.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hanpama/graphcache/internal/client"
	"github.com/hanpama/graphcache/internal/selection"
)

type Options struct {
	// Client performs requests. Defaults to a client with Timeout.
	Client *http.Client
	// Header is sent with every request.
	Header  http.Header
	Timeout time.Duration
}

type Option func(*Options)

func WithClient(c *http.Client) Option { return func(o *Options) { o.Client = c } }

func WithHeader(name, value string) Option { return func(o *Options) { o.Header.Add(name, value) } }

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// Transport posts operations as JSON to one endpoint.
type Transport struct {
	endpoint string
	opt      Options
}

var _ client.Transport = (*Transport)(nil)

func New(endpoint string, opts ...Option) *Transport {
	opt := Options{Header: http.Header{}, Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&opt)
	}
	if opt.Client == nil {
		opt.Client = &http.Client{Timeout: opt.Timeout}
	}
	return &Transport{endpoint: endpoint, opt: opt}
}

type headerKey struct{}

// ContextWithHeader returns a copy of ctx whose requests also carry h.
func ContextWithHeader(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, headerKey{}, h)
}

// Request is the JSON body of a GraphQL request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func (t *Transport) Send(ctx context.Context, op *selection.Operation) (*client.Response, error) {
	body, err := json.Marshal(Request{Query: op.Document, OperationName: op.Name, Variables: op.Variables})
	if err != nil {
		return nil, fmt.Errorf("httptransport: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range t.opt.Header {
		req.Header[k] = vs
	}
	if h, ok := ctx.Value(headerKey{}).(http.Header); ok {
		for k, vs := range h {
			req.Header[k] = vs
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/graphql-response+json, application/json")

	resp, err := t.opt.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := client.DecodeResponse(resp.Body)
	if err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("httptransport: status %d", resp.StatusCode)
		}
		return nil, err
	}
	return out, nil
}
