package model

import "time"

// Run is the bookkeeping row for one materialization run.
type Run struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Day        string     `json:"day"`
	Scope      string     `json:"scope"`
	Total      int        `json:"total"`
	Failures   int        `json:"failures"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
