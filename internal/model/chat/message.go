package chat

import "time"

// Message is one delivered chat line. From is denormalized at send time so
// history stays readable even after the sender disconnects.
type Message struct {
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
