package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/getmockd/netclient/pkg/cli/internal/output"
	"github.com/getmockd/netclient/pkg/cli/internal/parse"
	"github.com/getmockd/netclient/pkg/stub"
)

func newStubsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stubs",
		Short: "Inspect stub definition files",
	}
	cmd.AddCommand(
		newStubsValidateCmd(a),
		newStubsListCmd(a),
		newStubsMatchCmd(a),
		newStubsExportCmd(a),
	)
	return cmd
}

// loadPatterns reads every file or glob pattern, in order.
func loadPatterns(patterns []string) ([]stub.Entry, error) {
	var all []stub.Entry
	for _, p := range patterns {
		var (
			entries []stub.Entry
			err     error
		)
		if strings.ContainsAny(p, "*?[{") {
			entries, err = stub.LoadGlob(p)
		} else {
			entries, err = stub.Load(p)
		}
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// ValidateResult is the --json form of one validated file.
type ValidateResult struct {
	Path   string `json:"path"`
	Valid  bool   `json:"valid"`
	Stubs  int    `json:"stubs,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"error,omitempty"`
}

var errInvalidStubs = errors.New("invalid stub files")

func newStubsValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check stub files against the definition format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]ValidateResult, 0, len(args))
			failed := 0
			for _, path := range args {
				r := ValidateResult{Path: path}
				entries, err := stub.Load(path)
				if err != nil {
					failed++
					r.Reason = err.Error()
					var decErr *stub.DecodingError
					if errors.As(err, &decErr) {
						r.Field = decErr.Field
					}
				} else {
					r.Valid = true
					r.Stubs = len(entries)
				}
				results = append(results, r)
			}

			out := cmd.OutOrStdout()
			err := a.printResult(out, results, func() error {
				for _, r := range results {
					if r.Valid {
						_, _ = fmt.Fprintf(out, "ok      %s (%d stubs)\n", r.Path, r.Stubs)
					} else {
						_, _ = fmt.Fprintf(out, "invalid %s: %s\n", r.Path, r.Reason)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidStubs, failed, len(args))
			}
			return nil
		},
	}
}

// StubOutput is the --json form of one stub.
type StubOutput struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Params     stub.Params       `json:"params,omitempty"`
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       *string           `json:"body,omitempty"`
	Error      *stub.Error       `json:"error,omitempty"`
}

func stubOutput(e stub.Entry) StubOutput {
	out := StubOutput{
		Method:     string(e.Key.Method),
		URL:        e.Key.URL,
		Params:     e.Key.Params,
		StatusCode: e.Response.StatusCode,
		Headers:    e.Response.Headers,
		Error:      e.Response.Error,
	}
	if e.Response.HasBody() {
		body := string(e.Response.Body)
		out.Body = &body
	}
	return out
}

func newStubsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list PATTERN...",
		Short: "List the stubs defined in files or glob patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadPatterns(args)
			if err != nil {
				return err
			}
			store := stub.NewStoreWith(entries...)
			store.SetLogger(a.log)

			list := make([]StubOutput, 0, store.Count())
			for _, e := range store.Entries() {
				list = append(list, stubOutput(e))
			}

			out := cmd.OutOrStdout()
			return a.printResult(out, list, func() error {
				if len(list) == 0 {
					_, err := fmt.Fprintln(out, "No stubs found")
					return err
				}
				return writeStubTable(out, list)
			})
		},
	}
}

func writeStubTable(w io.Writer, list []StubOutput) error {
	tw := output.Table(w)
	_, _ = fmt.Fprintln(tw, "METHOD\tURL\tPARAMS\tSTATUS\tRESPONSE")
	for _, s := range list {
		params := "-"
		if len(s.Params) > 0 {
			params = output.Truncate(oj.JSON(s.Params, &ojg.Options{Sort: true}), 40)
		}
		response := "-"
		switch {
		case s.Error != nil:
			response = "error: " + s.Error.Error()
		case s.Body != nil:
			response = strconv.Itoa(len(*s.Body)) + " bytes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Method, s.URL, params, s.StatusCode, response)
	}
	return tw.Flush()
}

type matchOptions struct {
	params     []string
	paramsJSON string
}

// MatchOutput is the --json form of a match lookup.
type MatchOutput struct {
	Matched bool        `json:"matched"`
	Key     string      `json:"key"`
	Stub    *StubOutput `json:"stub,omitempty"`
}

func newStubsMatchCmd(a *app) *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match METHOD URL PATTERN...",
		Short: "Show which stub, if any, answers a request",
		Example: `  netclient stubs match GET /users 'stubs/**/*.yaml' --param page=1`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := stub.ParseMethod(strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			params, err := parse.Params(opts.paramsJSON, opts.params)
			if err != nil {
				return err
			}
			key, err := stub.NewRequestKey(args[1], method, params)
			if err != nil {
				return err
			}

			entries, err := loadPatterns(args[2:])
			if err != nil {
				return err
			}
			store := stub.NewStoreWith(entries...)
			store.SetLogger(a.log)

			result := MatchOutput{Key: key.String()}
			if resp, ok := store.Lookup(key); ok {
				s := stubOutput(stub.Entry{Key: key, Response: resp})
				result.Matched, result.Stub = true, &s
			}

			out := cmd.OutOrStdout()
			return a.printResult(out, result, func() error {
				if !result.Matched {
					_, err := fmt.Fprintf(out, "no stub matches %s\n", result.Key)
					return err
				}
				return writeStubTable(out, []StubOutput{*result.Stub})
			})
		},
	}
	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "Parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.paramsJSON, "params", "", "Parameters as a JSON object")
	return cmd
}

func newStubsExportCmd(a *app) *cobra.Command {
	var (
		format string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "export PATTERN...",
		Short: "Merge stub files into one definition file",
		Long: `Load every file or glob pattern and write the merged stubs as one
definition file. Later files win over earlier ones for equal keys.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := stub.Format(strings.ToLower(format))
			if f != stub.FormatJSON && f != stub.FormatYAML {
				return fmt.Errorf("invalid format %q (expected json or yaml)", format)
			}
			entries, err := loadPatterns(args)
			if err != nil {
				return err
			}
			store := stub.NewStoreWith(entries...)
			store.SetLogger(a.log)

			data, err := stub.EncodeAs(store.Entries(), f)
			if err != nil {
				return err
			}
			if file == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return err
			}
			a.log.Info("exported stubs", "count", store.Count(), "file", file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&file, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
