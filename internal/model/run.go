package model

import "time"

// RunStatus represents the current state of a scrape run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one invocation of the discovery and enrichment pipeline.
type Run struct {
	ID        string     `json:"id"`
	Query     string     `json:"query"`
	Target    int        `json:"target"`
	Workers   int        `json:"workers"`
	Status    RunStatus  `json:"status"`
	Stats     RunStats   `json:"stats"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// RunStats summarizes what each phase produced.
type RunStats struct {
	Discovered int `json:"discovered"`
	Extracted  int `json:"extracted"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Accepted   int `json:"accepted"`
	Enriched   int `json:"enriched"`
	Emails     int `json:"emails"`
}
