// Package admin implements sessionctl, an operator console over the session
// store: inspect or delete a session, run one sweep and check a session
// cookie against the server secret.
package admin
