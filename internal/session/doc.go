// Package session holds the authenticated user's session and its OAuth tokens.
//
// A Session is established from a provider Grant and stored in a signed,
// HTTP-only cookie. Access and refresh tokens are encrypted with AES-256-GCM
// inside the cookie using a key derived from the session secret, so the
// browser only ever sees opaque values.
//
// The session lives exactly as long as the access token it carries. Once the
// token expiry passes the session is rejected and the user has to sign in
// again. A new sign-in by the same identity keeps the previously known
// refresh token if the provider did not issue a new one.
package session
