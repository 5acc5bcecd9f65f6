// netclient CLI - send HTTP requests through reporters and stub files
package main

import "github.com/getmockd/netclient/pkg/cli"

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if Version != "dev" {
		cli.Version = Version
	}
	if Commit != "unknown" {
		cli.Commit = Commit
	}
	if BuildDate != "unknown" {
		cli.BuildDate = BuildDate
	}
	cli.Execute()
}
