// Package cmd implements the command-line interface for calgate.
//
// This package provides the following commands:
//   - serve: Start the calendar gateway (sign-in, session and calendar routes)
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for the MCP tools
package cmd
