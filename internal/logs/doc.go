// Package logs reads daemon log files for the CLI and the HTTP API.
package logs
