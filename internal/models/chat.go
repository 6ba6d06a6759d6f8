package models

// ChatMessage is one entry in a channel's capped recent-history list.
// The same shape is stored in Redis and broadcast to subscribers.
type ChatMessage struct {
	Type      string `json:"type"` // always "chat"
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}
