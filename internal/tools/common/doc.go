// Package common provides shared helpers for the MCP tool packages:
// invocation instrumentation and conversion of gateway results into tool
// results.
package common
