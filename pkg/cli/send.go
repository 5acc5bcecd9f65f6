package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/netclient/pkg/cli/internal/parse"
	"github.com/getmockd/netclient/pkg/cliconfig"
	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/logging"
	"github.com/getmockd/netclient/pkg/reporters"
	"github.com/getmockd/netclient/pkg/stub"
	"github.com/getmockd/netclient/pkg/tracing"
)

type sendOptions struct {
	baseURL      string
	params       []string
	paramsJSON   string
	headers      []string
	stubs        []string
	serial       bool
	timeout      string
	encoding     string
	expectStatus []string
	expectType   []string
	include      bool
	verbose      bool
	metrics      bool
	trace        bool
	otlpEndpoint string
}

// hookWait bounds how long send waits for parallel reporter hooks.
const hookWait = 2 * time.Second

// SendOutput is the --json form of a send result.
type SendOutput struct {
	RequestID  string              `json:"requestId"`
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	StatusCode int                 `json:"statusCode,omitempty"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       string              `json:"body,omitempty"`
	Stubbed    bool                `json:"stubbed"`
	DurationMs int64               `json:"durationMs"`
	Error      string              `json:"error,omitempty"`
}

var encoders = map[string]client.ParameterEncoder{
	"default": client.DefaultEncoder,
	"json":    client.JSONEncoder,
	"query":   client.QueryEncoder,
	"form":    client.FormEncoder,
}

func newSendCmd(a *app) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send METHOD URL",
		Short: "Send a request, answering from stubs when one matches",
		Long: `Send one request through the client.

Stub files named with --stubs (or the stubs config key) are consulted first:
a stub answers the request when its URL, method and parameters equal the
request's. Otherwise the request goes to the network.`,
		Example: `  # Query parameters for GET
  netclient send GET https://api.example.com/users --param page=2

  # JSON body for POST, answered from a stub file when it matches
  netclient send POST /login --params '{"user":"ann"}' --stubs stubs/*.yaml

  # Fail unless the status is 2xx and the body is JSON
  netclient send GET /health --expect-status 2xx --expect-type application/json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSend(cmd, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "", "Base URL for relative request URLs")
	f.StringArrayVarP(&opts.params, "param", "p", nil, "Parameter as key=value, JSON values keep their type (repeatable)")
	f.StringVar(&opts.paramsJSON, "params", "", "Parameters as a JSON object")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `Header as "Name: value" (repeatable)`)
	f.StringArrayVar(&opts.stubs, "stubs", nil, "Stub file or glob pattern (repeatable, adds to config)")
	f.BoolVar(&opts.serial, "serial", false, "Run reporter hooks serially in registration order")
	f.StringVar(&opts.timeout, "timeout", "", "Request timeout (e.g. 5s, or seconds)")
	f.StringVar(&opts.encoding, "encoding", "default", "Parameter encoding: default, json, query, form")
	f.StringArrayVar(&opts.expectStatus, "expect-status", nil, "Acceptable status codes: 200, 200-299 or 2xx (repeatable)")
	f.StringArrayVar(&opts.expectType, "expect-type", nil, "Acceptable content types, wildcards allowed (repeatable)")
	f.BoolVarP(&opts.include, "include", "i", false, "Print the status line and headers before the body")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log each request and its outcome to stderr")
	f.BoolVar(&opts.metrics, "metrics", false, "Print request metrics to stderr when done")
	f.BoolVar(&opts.trace, "trace", false, "Print the request span as JSON to stderr")
	f.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Export the request span to this OTLP/HTTP traces URL")
	return cmd
}

func (a *app) runSend(cmd *cobra.Command, opts *sendOptions, methodArg, url string) error {
	cfg := a.cfg
	if err := applySendFlags(cmd, cfg, opts); err != nil {
		return err
	}

	method, err := stub.ParseMethod(strings.ToUpper(methodArg))
	if err != nil {
		return err
	}
	req := &client.Request{URL: url, Method: method}
	if req.Params, err = parse.Params(opts.paramsJSON, opts.params); err != nil {
		return err
	}
	if req.Encoder = encoders[strings.ToLower(opts.encoding)]; req.Encoder == nil {
		return fmt.Errorf("unknown encoding %q (expected default, json, query or form)", opts.encoding)
	}
	if len(opts.headers) > 0 {
		hdrs, err := parse.Headers(opts.headers)
		if err != nil {
			return err
		}
		req.Headers = http.Header{}
		for k, v := range hdrs {
			req.Headers.Set(k, v)
		}
	}
	if req.AcceptableStatusCodes, err = parse.StatusCodes(opts.expectStatus); err != nil {
		return err
	}
	req.AcceptableContentTypes = parse.SplitAll(opts.expectType, ",")

	var store *stub.Store
	if len(cfg.Stubs) > 0 {
		if store, err = cfg.LoadStubs(a.log); err != nil {
			return err
		}
		a.log.Debug("loaded stubs", "count", store.Count())
	}

	clientCfg, err := cfg.ClientConfig(store, a.log)
	if err != nil {
		return err
	}
	c, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	hooks := &hookSet{client: c, policy: cfg.StoragePolicy()}

	history := reporters.NewHistoryReporter(cfg.HistorySize)
	hooks.add(history)
	if opts.verbose {
		hooks.add(reporters.NewLoggingReporter(verboseLogger(cfg, stderr)))
	}
	var metrics *reporters.MetricsReporter
	if opts.metrics {
		metrics = reporters.NewMetricsReporter(nil)
		hooks.add(metrics)
	}
	var tracer *tracing.Tracer
	if opts.trace || cfg.OTLPEndpoint != "" {
		tracer = newTracer(cfg, opts, stderr)
		hooks.add(reporters.NewTracingReporter(tracer))
	}

	resp, sendErr := c.Do(cmd.Context(), req)
	c.Wait()
	if !hooks.wait(hookWait) {
		a.log.Warn("reporters did not finish in time", "timeout", hookWait)
	}

	var entry *reporters.Entry
	if recorded := history.List(&reporters.Filter{Limit: 1}); len(recorded) == 1 {
		entry = recorded[0]
	}
	if metrics != nil {
		if err := metrics.Registry().WriteText(stderr); err != nil {
			a.log.Warn("writing metrics failed", "error", err)
		}
	}
	if tracer != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), hookWait)
		if err := tracer.Shutdown(ctx); err != nil {
			a.log.Warn("exporting spans failed", "error", err)
		}
		cancel()
	}

	out := cmd.OutOrStdout()
	printErr := a.printResult(out, sendOutput(req, resp, entry, sendErr), func() error {
		return printResponse(out, resp, opts.include)
	})
	if sendErr != nil {
		return sendErr
	}
	return printErr
}

func applySendFlags(cmd *cobra.Command, cfg *cliconfig.CLIConfig, opts *sendOptions) error {
	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.BaseURL = opts.baseURL
		cfg.Sources["baseUrl"] = cliconfig.SourceFlag
	}
	if f.Changed("serial") {
		cfg.Dispatch = client.DispatchParallel.String()
		if opts.serial {
			cfg.Dispatch = client.DispatchSerial.String()
		}
		cfg.Sources["dispatch"] = cliconfig.SourceFlag
	}
	if f.Changed("timeout") {
		d, err := cliconfig.ParseTimeout(opts.timeout)
		if err != nil {
			return err
		}
		cfg.Timeout = d
		cfg.Sources["timeout"] = cliconfig.SourceFlag
	}
	if f.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = opts.otlpEndpoint
		cfg.Sources["otlpEndpoint"] = cliconfig.SourceFlag
	}
	if len(opts.stubs) > 0 {
		cfg.Stubs = append(slices.Clone(cfg.Stubs), opts.stubs...)
		cfg.Sources["stubs"] = cliconfig.SourceFlag
	}
	return cfg.Validate()
}

func newTracer(cfg *cliconfig.CLIConfig, opts *sendOptions, w io.Writer) *tracing.Tracer {
	var exporters multiExporter
	if opts.trace {
		exporters = append(exporters, tracing.NewWriterExporter(w))
	}
	if cfg.OTLPEndpoint != "" {
		exporters = append(exporters, tracing.NewOTLPExporter(cfg.OTLPEndpoint))
	}
	return tracing.NewTracer("netclient", tracing.WithExporter(exporters))
}

// verboseLogger writes request lines through slog when logs are JSON, and as
// plain "[netclient] ..." lines otherwise.
func verboseLogger(cfg *cliconfig.CLIConfig, w io.Writer) reporters.Logger {
	if logging.ParseFormat(cfg.LogFormat) == logging.FormatJSON {
		return reporters.NewSlogLogger(logging.New(logging.Config{
			Level:     slog.LevelInfo,
			Format:    logging.FormatJSON,
			Output:    w,
			Component: "netclient",
		}))
	}
	l := reporters.NewSimpleLogger("netclient")
	l.SetOutput(w)
	return l
}

func sendOutput(req *client.Request, resp *client.Response, entry *reporters.Entry, err error) SendOutput {
	out := SendOutput{Method: string(req.Method), URL: req.URL}
	if entry != nil {
		out.RequestID = entry.RequestID
		out.Stubbed = entry.Stubbed
		out.DurationMs = entry.DurationMs
	}
	if resp != nil {
		out.StatusCode = resp.StatusCode
		out.Headers = resp.Header
		out.Body, _ = resp.Decoded()
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func printResponse(w io.Writer, resp *client.Response, include bool) error {
	if resp == nil {
		return nil
	}
	if include {
		if _, err := fmt.Fprintf(w, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode)); err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(resp.Header)) {
			for _, v := range resp.Header[name] {
				if _, err := fmt.Fprintf(w, "%s: %s\n", name, v); err != nil {
					return err
				}
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	if len(resp.Body) == 0 {
		return nil
	}
	// unknown charsets fall back to the raw bytes
	body, _ := resp.Decoded()
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	if !strings.HasSuffix(body, "\n") {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
