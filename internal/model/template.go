package model

import "time"

// Template is a standing recurring chore for one assignee. Title,
// Description and Schedule are the only mutable fields.
type Template struct {
	ID          int64     `json:"id"`
	AssigneeID  int64     `json:"assignee_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
