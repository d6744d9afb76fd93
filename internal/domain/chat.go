package domain

import "time"

// Chat represents one conversation session. Provider and model record the
// current generation target for new messages in the chat.
type Chat struct {
	ID        string
	UserID    string
	Title     string
	Provider  string
	Model     string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
