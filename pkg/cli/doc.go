// Package cli implements the netclient command line: sending requests
// through the client with optional stub files and reporters, and
// validating, listing, matching and exporting stub definition files.
package cli
