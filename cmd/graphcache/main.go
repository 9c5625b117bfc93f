package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hanpama/graphcache/internal/client"
	"github.com/hanpama/graphcache/internal/codec"
	"github.com/hanpama/graphcache/internal/compile"
	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/httptransport"
	"github.com/hanpama/graphcache/internal/server"
	"github.com/hanpama/graphcache/internal/store"
)

const rootUsage = `graphcache: normalized GraphQL cache tools

USAGE:
  graphcache <command> [flags]

COMMANDS:
  write            Normalize a response into a cache database
  read             Answer a query from a cache database
  dump             Print every record of a cache database
  fetch            Fetch a query from a GraphQL endpoint through the cache
  serve            Run a caching GraphQL proxy in front of an endpoint
  help             Show help for any command
`

const cacheFlagsUsage = `  -db <path>                          Cache database path (required)
  -backend <bolt|badger|btree>        Storage backend (default: bolt)
  -codec <cbor|json|proto>            Record encoding (default: cbor)
  -keys <field,...>                   Fields identifying objects as Type:value (default: id)
  -v <level>                          Log verbosity (default: 0)
`

const operationFlagsUsage = `  -schema <file>                      GraphQL SDL file (required)
  -query <file>                       Query document file (required)
  -operation <name>                   Operation to run when the document has several
  -variables <json>                   Operation variables as a JSON object
`

const writeUsage = "write FLAGS:\n" + cacheFlagsUsage + operationFlagsUsage +
	`  -response <file>                    Response JSON file, - for stdin (default: -)
`

const readUsage = "read FLAGS:\n" + cacheFlagsUsage + operationFlagsUsage +
	`  -pretty                             Indent JSON output
`

const dumpUsage = "dump FLAGS:\n" + cacheFlagsUsage

const fetchUsage = "fetch FLAGS:\n" + cacheFlagsUsage + operationFlagsUsage +
	`  -endpoint <url>                     GraphQL HTTP endpoint (required)
  -header <Name: value>               Request header. Repeatable
  -policy <name>                      Cache policy (default: ReturnCacheDataElseFetch)
  -timeout <duration>                 Request timeout (default: 10s)
  -poll <duration>                    Keep refetching at this interval until interrupted
  -pretty                             Indent JSON output
  -metrics.addr <addr>                Serve Prometheus metrics while polling
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: graphcache)
`

const serveUsage = "serve FLAGS:\n" + cacheFlagsUsage +
	`  -schema <file>                      GraphQL SDL file (required)
  -endpoint <url>                     Upstream GraphQL HTTP endpoint (required)
  -server.addr <addr>                 HTTP listen address (default: :8080)
  -server.pretty                      Pretty-print JSON responses
  -server.timeout <duration>          Per-request timeout (default: 10s)
  -server.max-body <bytes>            Request body limit, 0 for none (default: 1048576)
  -server.forward-header <name>       Forward request header upstream. Repeatable
  -server.cors-origin <origin>        Allowed CORS origin. Repeatable
  -policy <name>                      Default cache policy (default: ReturnCacheDataElseFetch)
  -metrics.addr <addr>                Serve Prometheus metrics
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: graphcache)
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	global := flag.NewFlagSet("graphcache", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "write":
		return cmdWrite(cmdArgs, stdin, stdout)
	case "read":
		return cmdRead(cmdArgs, stdout)
	case "dump":
		return cmdDump(cmdArgs, stdout)
	case "fetch":
		return cmdFetch(cmdArgs, stdout)
	case "serve":
		return cmdServe(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "write":
		fmt.Fprint(stdout, writeUsage)
	case "read":
		fmt.Fprint(stdout, readUsage)
	case "dump":
		fmt.Fprint(stdout, dumpUsage)
	case "fetch":
		fmt.Fprint(stdout, fetchUsage)
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdWrite(args []string, stdin io.Reader, stdout io.Writer) error {
	var cf cacheFlags
	var of operationFlags
	responseFile := "-"
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	of.register(fs)
	fs.StringVar(&responseFile, "response", responseFile, "Response JSON file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, writeUsage)
		return err
	}
	if err := errors.Join(cf.validate(), of.validate()); err != nil {
		fmt.Fprint(os.Stderr, writeUsage)
		return err
	}

	op, err := of.compile()
	if err != nil {
		return err
	}
	in := stdin
	if responseFile != "-" {
		f, err := os.Open(responseFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	resp, err := client.DecodeResponse(in)
	if err != nil {
		return err
	}
	if resp.Data == nil {
		return fmt.Errorf("response has no data")
	}

	env, err := cf.open(eventbus.New())
	if err != nil {
		return err
	}
	defer env.Close()

	n, err := env.store.Normalize(op, resp.Data)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	changed, err := env.store.Publish(context.Background(), n.Records, "")
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	fmt.Fprintf(stdout, "%d records, %d changed fields\n", len(n.Records), len(changed))
	for _, key := range changed.Sorted() {
		fmt.Fprintln(stdout, key)
	}
	return nil
}

func cmdRead(args []string, stdout io.Writer) error {
	var cf cacheFlags
	var of operationFlags
	pretty := false
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	of.register(fs)
	fs.BoolVar(&pretty, "pretty", pretty, "Indent JSON output")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, readUsage)
		return err
	}
	if err := errors.Join(cf.validate(), of.validate()); err != nil {
		fmt.Fprint(os.Stderr, readUsage)
		return err
	}

	op, err := of.compile()
	if err != nil {
		return err
	}
	env, err := cf.open(eventbus.New())
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.store.Load(context.Background(), op)
	if err != nil {
		return err
	}
	return writeResult(stdout, res, pretty)
}

func cmdDump(args []string, stdout io.Writer) error {
	var cf cacheFlags
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, dumpUsage)
		return err
	}
	if err := cf.validate(); err != nil {
		fmt.Fprint(os.Stderr, dumpUsage)
		return err
	}

	env, err := cf.open(eventbus.New())
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := env.store.Records(context.Background())
	if err != nil {
		return err
	}
	out := codec.JSON{}
	for _, key := range records.Keys() {
		b, err := out.Encode(records[key])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\t%s\n", key, b)
	}
	return nil
}

func cmdFetch(args []string, stdout io.Writer) error {
	var cf cacheFlags
	var of operationFlags
	var headers stringListFlag
	endpoint := ""
	policyName := client.ReturnCacheDataElseFetch.String()
	timeout := 10 * time.Second
	poll := time.Duration(0)
	pretty := false
	metricsAddr := ""
	otelEndpoint := ""
	otelService := "graphcache"

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	of.register(fs)
	fs.StringVar(&endpoint, "endpoint", endpoint, "GraphQL HTTP endpoint")
	fs.Var(&headers, "header", "Request header")
	fs.StringVar(&policyName, "policy", policyName, "Cache policy")
	fs.DurationVar(&timeout, "timeout", timeout, "Request timeout")
	fs.DurationVar(&poll, "poll", poll, "Refetch interval")
	fs.BoolVar(&pretty, "pretty", pretty, "Indent JSON output")
	fs.StringVar(&metricsAddr, "metrics.addr", metricsAddr, "Prometheus listen address")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, fetchUsage)
		return err
	}
	if err := errors.Join(cf.validate(), of.validate()); err != nil {
		fmt.Fprint(os.Stderr, fetchUsage)
		return err
	}
	if endpoint == "" {
		fmt.Fprint(os.Stderr, fetchUsage)
		return fmt.Errorf("-endpoint is required")
	}
	policy, err := client.ParsePolicy(policyName)
	if err != nil {
		return err
	}
	header, err := parseHeaders(headers)
	if err != nil {
		return err
	}
	op, err := of.compile()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus := eventbus.New()
	shutdown, err := setupTelemetry(ctx, bus, metricsAddr, otelEndpoint, otelService, cf.logger())
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	env, err := cf.open(bus)
	if err != nil {
		return err
	}
	defer env.Close()

	trOpts := []httptransport.Option{httptransport.WithTimeout(timeout)}
	for name, v := range header {
		trOpts = append(trOpts, httptransport.WithHeader(name, v))
	}
	transport := httptransport.New(endpoint, trOpts...)
	c := client.New(env.store, transport, client.WithLogger(cf.logger()), client.WithBus(bus))
	defer c.Close()

	results := make(chan error, 1)
	handler := func(res *store.Result, err error) {
		if err == nil {
			err = writeResult(stdout, res, pretty)
		}
		select {
		case results <- err:
		default:
		}
	}

	if poll <= 0 {
		f := c.Fetch(ctx, op, policy, handler)
		if _, err := f.Wait(ctx); err != nil {
			return err
		}
		select {
		case err := <-results:
			return err
		default:
			return client.ErrCancelled
		}
	}

	w := c.WatchWithPolicy(ctx, op, policy, handler)
	defer w.Cancel()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-results:
			if err != nil {
				cf.logger().Error(err, "fetch failed", "operation", op.Name)
			}
		case <-ticker.C:
			w.Refetch(ctx)
		}
	}
}

func cmdServe(args []string) error {
	var cf cacheFlags
	var forward, origins stringListFlag
	schemaFile := ""
	endpoint := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	maxBody := int64(1 << 20)
	policyName := client.ReturnCacheDataElseFetch.String()
	metricsAddr := ""
	otelEndpoint := ""
	otelService := "graphcache"

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	cf.register(fs)
	fs.StringVar(&schemaFile, "schema", schemaFile, "GraphQL SDL file")
	fs.StringVar(&endpoint, "endpoint", endpoint, "Upstream GraphQL HTTP endpoint")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&maxBody, "server.max-body", maxBody, "Request body limit")
	fs.Var(&forward, "server.forward-header", "Forward request header upstream")
	fs.Var(&origins, "server.cors-origin", "Allowed CORS origin")
	fs.StringVar(&policyName, "policy", policyName, "Default cache policy")
	fs.StringVar(&metricsAddr, "metrics.addr", metricsAddr, "Prometheus listen address")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if err := cf.validate(); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if schemaFile == "" || endpoint == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-schema and -endpoint are required")
	}
	policy, err := client.ParsePolicy(policyName)
	if err != nil {
		return err
	}
	sdl, err := os.ReadFile(schemaFile)
	if err != nil {
		return err
	}
	l := cf.logger()
	compiler, err := compile.FromSDL(schemaFile, string(sdl), compile.WithLogger(l.WithName("compile")))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus := eventbus.New()
	shutdown, err := setupTelemetry(ctx, bus, metricsAddr, otelEndpoint, otelService, l)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	env, err := cf.open(bus)
	if err != nil {
		return err
	}
	defer env.Close()

	c := client.New(env.store, httptransport.New(endpoint, httptransport.WithTimeout(timeout)),
		client.WithLogger(l.WithName("client")), client.WithBus(bus))
	defer c.Close()

	sopts := []server.Option{
		server.WithTimeout(timeout),
		server.WithMaxBodyBytes(maxBody),
		server.WithPolicy(policy),
		server.WithLogger(l.WithName("server")),
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(forward) > 0 {
		sopts = append(sopts, server.WithForwardHeaders(forward...))
	}
	if len(origins) > 0 {
		sopts = append(sopts, server.WithCORS(origins...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(c, compiler, sopts...))
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	l.Info("GraphQL proxy listening", "addr", addr, "upstream", endpoint)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

func writeResult(w io.Writer, res *store.Result, pretty bool) error {
	out := map[string]any{"data": res.Data}
	if len(res.Errors) > 0 {
		out["errors"] = res.Errors
	}
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(out, "", "  ")
	} else {
		b, err = json.Marshal(out)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func parseHeaders(values []string) (map[string]string, error) {
	out := map[string]string{}
	for _, v := range values {
		name, val, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q", v)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}
	return out, nil
}
