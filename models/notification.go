package models

import "time"

// Notification is a persisted inbox entry for a user, typically written
// when an achievement or server-side message is delivered.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Type      string            `json:"type"` // achievement, reminder, welcome
	Read      bool              `json:"read"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
