package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/netclient/pkg/cli/internal/output"
	"github.com/getmockd/netclient/pkg/cliconfig"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	// persistent flags
	configFile string
	jsonOutput bool
	logLevel   string
	logFormat  string
	logFile    string

	cfg      *cliconfig.CLIConfig
	log      *slog.Logger
	closeLog func() error
}

// NewRootCommand builds the netclient command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "netclient",
		Short: "netclient sends HTTP requests with pluggable reporters and stub responses",
		Long: `netclient sends HTTP requests, notifying reporters before and after each one,
and answers requests from stub definition files instead of the network when a
stub matches the request URL, method and parameters.

Configuration can be provided via flags, NETCLIENT_* environment variables,
.netclientrc.yaml in the current directory, or ~/.config/netclient/config.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true, // handled in Execute
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (replaces .netclientrc.yaml discovery)")
	pf.BoolVar(&a.jsonOutput, "json", false, "Output command results in JSON format")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&a.logFile, "log-file", "", "Also write debug-level JSON logs to this file")

	rootCmd.AddCommand(
		newSendCmd(a),
		newStubsCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// setup resolves configuration with flags taking precedence over every other
// source.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := cliconfig.LoadAll(a.configFile)
	if err != nil {
		return err
	}

	flagString := func(name, key string, value string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst = value
			cfg.Sources[key] = cliconfig.SourceFlag
		}
	}
	flagString("log-level", "logLevel", a.logLevel, &cfg.LogLevel)
	flagString("log-format", "logFormat", a.logFormat, &cfg.LogFormat)
	flagString("log-file", "logFile", a.logFile, &cfg.LogFile)
	if cmd.Flags().Changed("json") {
		cfg.JSON = a.jsonOutput
		cfg.Sources["json"] = cliconfig.SourceFlag
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closeLog, err := cfg.OpenLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.log, a.closeLog = cfg, log, closeLog
	return nil
}

// printResult writes data as JSON in --json mode, otherwise calls textFn.
//
// When --json is active, ONLY the JSON encoding of data is written to stdout.
func (a *app) printResult(w io.Writer, data any, textFn func() error) error {
	if a.cfg != nil && a.cfg.JSON {
		return output.JSON(w, data)
	}
	return textFn()
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if code := Main(); code != 0 {
		os.Exit(code)
	}
}

// Main runs the root command and returns the process exit code.
func Main() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
