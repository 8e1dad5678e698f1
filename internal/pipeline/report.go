package pipeline

import (
	"time"

	"git.home.luguber.info/inful/docweave/internal/closure"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// RepositoryReport is the outcome of one repository in a run.
type RepositoryReport struct {
	Name    string         `json:"name"`
	Readme  string         `json:"readme,omitempty"`
	Commit  string         `json:"commit,omitempty"`
	Files   []string       `json:"files,omitempty"`
	Changed int            `json:"changed"`
	Broken  []closure.Link `json:"broken,omitempty"`
	Skipped []closure.Link `json:"skipped,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Failed reports whether the repository was left out of the book.
func (r RepositoryReport) Failed() bool { return r.Error != "" }

// Report is the outcome of a run.
type Report struct {
	RunID        string             `json:"run_id"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Status       state.Status       `json:"status"`
	Repositories []RepositoryReport `json:"repositories"`
	// Rewritten counts link destinations prefixed by the rewrite pass.
	Rewritten int    `json:"rewritten"`
	Error     string `json:"error,omitempty"`
}

// Names returns the repository names in run order.
func (r *Report) Names() []string {
	out := make([]string, 0, len(r.Repositories))
	for _, rr := range r.Repositories {
		out = append(out, rr.Name)
	}
	return out
}

// FailedNames returns the names of failed repositories.
func (r *Report) FailedNames() []string {
	var out []string
	for _, rr := range r.Repositories {
		if rr.Failed() {
			out = append(out, rr.Name)
		}
	}
	return out
}

// FileCount returns the number of files published.
func (r *Report) FileCount() int {
	n := 0
	for _, rr := range r.Repositories {
		n += len(rr.Files)
	}
	return n
}

// BrokenCount returns the number of broken links found.
func (r *Report) BrokenCount() int {
	n := 0
	for _, rr := range r.Repositories {
		n += len(rr.Broken)
	}
	return n
}

// status derives the run status. stageErr is an error outside the
// per-repository loop.
func (r *Report) status(stageErr error) state.Status {
	failed := len(r.FailedNames())
	switch {
	case stageErr != nil:
		return state.StatusFailed
	case failed == 0:
		return state.StatusSucceeded
	case failed == len(r.Repositories):
		return state.StatusFailed
	default:
		return state.StatusPartial
	}
}
