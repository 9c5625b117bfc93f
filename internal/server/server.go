// Package server serves a GraphQL endpoint answered through the client:
// queries follow a cache policy, mutations go to the upstream transport.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	json "github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcache/internal/client"
	"github.com/hanpama/graphcache/internal/compile"
	"github.com/hanpama/graphcache/internal/httptransport"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/store"
	"github.com/hanpama/graphcache/internal/value"
)

// PolicyHeader selects the cache policy of a request.
const PolicyHeader = "X-Graphcache-Policy"

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	client   *client.Client
	compiler *compile.Compiler
	opt      Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// ForwardHeaders lists request headers passed on to the upstream
	// server. Header names are case-insensitive. Default is none.
	ForwardHeaders []string

	// Policy is used for queries without a PolicyHeader.
	Policy client.CachePolicy

	Logger logr.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}
func WithPolicy(p client.CachePolicy) Option { return func(o *Options) { o.Policy = p } }
func WithLogger(l logr.Logger) Option        { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler compiling requests with compiler and
// running them through c.
func New(c *client.Client, compiler *compile.Compiler, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, Policy: client.ReturnCacheDataElseFetch, Logger: logr.Discard()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{client: c, compiler: compiler, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse(gqlerror.Errorf("method not allowed")), h.opt.Pretty)
		return
	}

	if fwd := h.forwarded(r.Header); len(fwd) > 0 {
		ctx = httptransport.ContextWithHeader(ctx, fwd)
	}

	policy := h.opt.Policy
	if name := r.Header.Get(PolicyHeader); name != "" {
		p, err := client.ParsePolicy(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse(gqlerror.Errorf("%s", err.Error())), h.opt.Pretty)
			return
		}
		policy = p
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status := http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		results := make([]Result, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = h.executeOne(ctx, batch[i], policy)
			}(i)
		}
		wg.Wait()
		writeJSON(w, http.StatusOK, results, h.opt.Pretty)
		return
	}

	writeJSON(w, http.StatusOK, h.executeOne(ctx, req, policy), h.opt.Pretty)
}

func (h *Handler) forwarded(in http.Header) http.Header {
	out := http.Header{}
	for _, name := range h.opt.ForwardHeaders {
		if vs := in.Values(name); len(vs) > 0 {
			out[http.CanonicalHeaderKey(name)] = vs
		}
	}
	return out
}

func (h *Handler) executeOne(ctx context.Context, req httptransport.Request, policy client.CachePolicy) Result {
	op, err := h.compiler.Compile(req.Query, req.OperationName)
	if err != nil {
		var ge *gqlerror.Error
		if errors.As(err, &ge) {
			return errorResponse(ge)
		}
		return errorResponse(gqlerror.Errorf("%s", err.Error()))
	}
	vars := make(map[string]any, len(op.Variables)+len(req.Variables))
	for k, v := range op.Variables {
		vars[k] = v
	}
	for k, v := range req.Variables {
		vars[k] = v
	}
	op = op.WithVariables(vars)

	var (
		mu   sync.Mutex
		last *store.Result
		lerr error
	)
	handler := func(res *store.Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		last, lerr = res, err
	}

	var f *client.FetchOperation
	switch op.Kind {
	case selection.Mutation:
		f = h.client.Perform(ctx, op, handler)
	case selection.Subscription:
		return errorResponse(gqlerror.Errorf("subscriptions are not supported"))
	default:
		f = h.client.Fetch(ctx, op, policy, handler)
	}

	if _, err := f.Wait(ctx); err != nil {
		return errorResponse(gqlerror.Errorf("%s", err.Error()))
	}

	mu.Lock()
	defer mu.Unlock()
	if lerr != nil {
		h.opt.Logger.V(1).Info("operation failed", "operation", op.Name, "error", lerr.Error())
		return errorResponse(gqlerror.Errorf("%s", lerr.Error()))
	}
	if last == nil {
		return errorResponse(gqlerror.Errorf("%s", client.ErrCancelled.Error()))
	}
	return Result{
		Data:       last.Data,
		Errors:     last.Errors,
		Extensions: map[string]any{"cacheSource": string(last.Source)},
	}
}

// ------------------ Request parsing ------------------

func parseRequest(r *http.Request, maxBody int64) (httptransport.Request, []httptransport.Request, *gqlerror.Error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return httptransport.Request{}, nil, gqlerror.Errorf("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			decoded, err := decodeVariables([]byte(v))
			if err != nil {
				return httptransport.Request{}, nil, gqlerror.Errorf("invalid 'variables' JSON")
			}
			vars = decoded
		}
		op := r.URL.Query().Get("operationName")
		return httptransport.Request{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return httptransport.Request{}, nil, gqlerror.Errorf("unsupported Content-Type")
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return httptransport.Request{}, nil, gqlerror.Errorf("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return httptransport.Request{}, nil, gqlerror.Errorf("%s", errBodyTooLargeMessage)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var arr []httptransport.Request
		if err := decode(body, &arr); err != nil {
			return httptransport.Request{}, nil, gqlerror.Errorf("invalid JSON")
		}
		if len(arr) == 0 {
			return httptransport.Request{}, nil, gqlerror.Errorf("empty batch")
		}
		for i := range arr {
			if err := normalizeVariables(&arr[i]); err != nil {
				return httptransport.Request{}, nil, gqlerror.Errorf("invalid 'variables' JSON")
			}
		}
		return httptransport.Request{}, arr, nil
	}
	var req httptransport.Request
	if err := decode(body, &req); err != nil {
		return httptransport.Request{}, nil, gqlerror.Errorf("invalid JSON")
	}
	if req.Query == "" {
		return httptransport.Request{}, nil, gqlerror.Errorf("missing 'query'")
	}
	if err := normalizeVariables(&req); err != nil {
		return httptransport.Request{}, nil, gqlerror.Errorf("invalid 'variables' JSON")
	}
	return req, nil, nil
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeVariables(b []byte) (map[string]any, error) {
	var raw map[string]any
	if err := decode(b, &raw); err != nil {
		return nil, err
	}
	req := httptransport.Request{Variables: raw}
	if err := normalizeVariables(&req); err != nil {
		return nil, err
	}
	return req.Variables, nil
}

func normalizeVariables(req *httptransport.Request) error {
	if req.Variables == nil {
		req.Variables = map[string]any{}
		return nil
	}
	v, err := value.Normalize(map[string]any(req.Variables))
	if err != nil {
		return err
	}
	req.Variables = map[string]any(v.(value.Object))
	return nil
}

// ------------------ Response formatting ------------------

// Result is a GraphQL response body.
type Result struct {
	Data       any            `json:"data"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func errorResponse(err *gqlerror.Error) Result {
	return Result{Errors: gqlerror.List{err}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, `{"errors":[{"message":%q}]}`, err.Error())
	}
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
