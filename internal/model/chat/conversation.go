package chat

// ConversationSummary is one entry of a user's conversation list. With holds
// the peer's current username, resolved at listing time rather than snapshotted.
type ConversationSummary struct {
	ID          string   `json:"id"`
	With        string   `json:"with"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}
