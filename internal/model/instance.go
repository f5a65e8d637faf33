package model

import "time"

// Instance is a recurring chore materialized for one calendar day. Day is
// the YYYY-MM-DD date in the evaluation timezone.
type Instance struct {
	ID          int64     `json:"id"`
	AssigneeID  int64     `json:"assignee_id"`
	TemplateID  *int64    `json:"template_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Day         string    `json:"day"`
	CreatedAt   time.Time `json:"created_at"`
}

// JitInstance is a one-off chore valid only on Day.
type JitInstance struct {
	ID          int64     `json:"id"`
	AssigneeID  int64     `json:"assignee_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Day         string    `json:"day"`
	CreatedAt   time.Time `json:"created_at"`
}
