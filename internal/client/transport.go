package client

import (
	"bytes"
	"context"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

// Response is a GraphQL response as received from a server. Data and
// Errors may both be present.
type Response struct {
	Data       value.Object
	Errors     gqlerror.List
	Extensions map[string]any
}

// Transport sends operations to a server.
type Transport interface {
	Send(ctx context.Context, op *selection.Operation) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, op *selection.Operation) (*Response, error)

func (f TransportFunc) Send(ctx context.Context, op *selection.Operation) (*Response, error) {
	return f(ctx, op)
}

type wireResponse struct {
	Data       map[string]any `json:"data"`
	Errors     gqlerror.List  `json:"errors"`
	Extensions map[string]any `json:"extensions"`
}

// DecodeResponse decodes a JSON response body. Numbers keep their integer
// or floating point form.
func DecodeResponse(r io.Reader) (*Response, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var wire wireResponse
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	resp := &Response{Errors: wire.Errors}
	if wire.Data != nil {
		data, err := value.Normalize(wire.Data)
		if err != nil {
			return nil, fmt.Errorf("client: decode response data: %w", err)
		}
		resp.Data = data.(value.Object)
	}
	if wire.Extensions != nil {
		ext, err := value.Normalize(wire.Extensions)
		if err != nil {
			return nil, fmt.Errorf("client: decode response extensions: %w", err)
		}
		resp.Extensions = ext.(value.Object)
	}
	return resp, nil
}

// DecodeResponseBytes decodes a JSON response body held in memory.
func DecodeResponseBytes(b []byte) (*Response, error) {
	return DecodeResponse(bytes.NewReader(b))
}
