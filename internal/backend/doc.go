// Package backend is the HTTP client for the external chat and automation backend.
//
// The backend exposes two endpoints used by calgate:
//
//   - POST /chat takes {user_id, ...} and answers {reply, ...}
//   - POST /auth/store-google-tokens persists a user's refresh token
//
// The client never retries. Failures are reported as *UnreachableError for
// transport problems and *RejectedError for non-2xx responses so callers can
// classify them without inspecting strings.
package backend
