package chat

// User is the public view of an online session, as exposed in user lists.
type User struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}
