package models

import "time"

// Feedback is one user-submitted message. Append-only; there is no update or
// delete path and no identity beyond the inserted document.
type Feedback struct {
	UserID   string    `bson:"user_id"`
	Username string    `bson:"username"`
	Date     time.Time `bson:"date"`
	Message  string    `bson:"message"`
}
