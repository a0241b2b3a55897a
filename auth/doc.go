// Package auth supplies request credentials for the streaming API.
//
// Credentials attach themselves to outgoing HTTP requests. Bearer tokens
// that are JWTs get a local expiry check so a token known to be expired
// fails before any network attempt is spent on it.
package auth
