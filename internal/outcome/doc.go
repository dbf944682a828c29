// Package outcome classifies the results of gateway operations.
//
// Transport success and business success are separate: the chat backend may
// answer 200 with a reply that says the requested action failed. ClassifyReply
// is the single place that recognizes those replies, and Classify combines it
// with transport and status errors into one tagged Outcome.
//
// Status mapping:
//
//	Success             200
//	Unauthorized        401
//	ValidationError     400
//	ApplicationFailure  400, message is the literal reply
//	BackendUnreachable  500, message names the backend URL
//	BackendRejected     the backend's own status and message
//	UpstreamError       the third-party API status, or 502
package outcome
