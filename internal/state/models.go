package state

import "time"

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Status       Status    `json:"status"`
	Repositories int       `json:"repositories"`
	Files        int       `json:"files"`
	Error        string    `json:"error,omitempty"`
}

// File is a file published by a run.
type File struct {
	Repository  string `json:"repository"`
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// BrokenLink is an unresolved relative link found during a run.
type BrokenLink struct {
	Repository string `json:"repository"`
	Source     string `json:"source"`
	Target     string `json:"target"`
}

// RunDetail is a run with everything it recorded.
type RunDetail struct {
	Run
	Files  []File       `json:"files"`
	Broken []BrokenLink `json:"broken_links"`
}
