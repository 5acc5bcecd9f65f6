package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/netclient/pkg/cli/internal/output"
	"github.com/getmockd/netclient/pkg/cliconfig"
)

// ConfigOutput is the --json form of the effective configuration.
type ConfigOutput struct {
	Config  *cliconfig.CLIConfig `json:"config"`
	Sources map[string]string    `json:"sources"`
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where it came from",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with the source of each value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.printResult(out, ConfigOutput{Config: a.cfg, Sources: a.cfg.Sources}, func() error {
				data, err := yaml.Marshal(a.cfg)
				if err != nil {
					return err
				}
				if _, err := out.Write(data); err != nil {
					return err
				}

				keys := make([]string, 0, len(a.cfg.Sources))
				for k := range a.cfg.Sources {
					keys = append(keys, k)
				}
				slices.Sort(keys)

				_, _ = fmt.Fprintln(out, "\n# sources")
				tw := output.Table(out)
				for _, k := range keys {
					_, _ = fmt.Fprintf(tw, "# %s\t%s\n", k, a.cfg.Sources[k])
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "List the config file locations that are searched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			paths := cliconfig.SearchPaths()
			return a.printResult(out, paths, func() error {
				for _, p := range paths {
					state := "missing"
					if _, err := os.Stat(p); err == nil {
						state = "found"
					}
					_, _ = fmt.Fprintf(out, "%-8s %s\n", state, p)
				}
				if env := os.Getenv(cliconfig.EnvConfig); env != "" {
					_, _ = fmt.Fprintf(out, "%-8s %s (%s)\n", "env", strings.TrimSpace(env), cliconfig.EnvConfig)
				}
				return nil
			})
		},
	})
	return cmd
}
