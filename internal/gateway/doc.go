// Package gateway is the single authenticated entry point for calendar operations.
//
// A Strategy authenticates a resolved session and then lists or creates
// events. Two implementations exist and one is selected per deployment:
//
//   - Direct calls the Google Calendar API with the user's access token.
//   - Delegated forwards the request, tagged with the user's identity, to the
//     chat backend, which acts with the refresh token synced at sign-in.
//
// Nothing is sent downstream unless Authenticate produced a Principal.
// Every failure is an *outcome.Error carrying the status to answer with.
// Calendar mutations are not idempotent and are never retried.
package gateway
