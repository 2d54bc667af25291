// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// UserRegisteredEvent is published when a signup completes.  The email /
// newsletter service consumes it to send the welcome mail; the payload
// carries everything it needs so it never has to query the primary database.
type UserRegisteredEvent struct {
    UserID       uint64 `json:"user_id"`
    FullName     string `json:"full_name"`
    Email        string `json:"email"`
    Role         string `json:"role"`
    RegisteredAt string `json:"registered_at"`
}
