// Package tokensync keeps the chat backend's copy of a user's Google tokens current.
//
// Google only hands out a refresh token on first consent or re-consent. When
// that happens the Syncer posts it to the backend so background jobs can act
// on the user's behalf. The post is best effort: it runs detached from the
// sign-in request, is never retried, and its result is only visible in logs
// and the token_sync_total metric.
package tokensync
