// Package calendar provides a client for the Google Calendar API.
//
// The client is stateless with respect to credentials: each call takes the
// signed-in user's access token and talks to that user's primary calendar.
// It supports the two operations the gateway needs, listing upcoming events
// and inserting a new one in a fixed, configured time zone.
//
// Example usage:
//
//	client, err := calendar.NewClient(calendar.Config{TimeZone: "Asia/Kolkata"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// List upcoming events
//	events, err := client.ListUpcoming(ctx, sess.Tokens.AccessToken)
//	if err != nil {
//	    log.Fatal(err)
//	}
package calendar
