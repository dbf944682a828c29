// Package calendar_tools exposes the calendar gateway as MCP tools.
//
// The tools run through the same gateway strategy as the HTTP endpoints and
// act as the user whose session cookie authenticated the MCP request.
// Gateway failures are returned as tool errors, not protocol errors.
package calendar_tools
