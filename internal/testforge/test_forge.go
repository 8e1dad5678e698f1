// Package testforge serves a fake Bitbucket Server repository listing for
// tests.
package testforge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// FailMode defines how the test forge should behave.
type FailMode int

const (
	FailModeNone FailMode = iota
	FailModeAuth
	FailModeServer
	FailModeNotFound
)

// TestRepository is one repository of the fake project.
type TestRepository struct {
	Name string
	// Slug is omitted from the listing when empty.
	Slug string
}

// TestForge is a running fake server.
type TestForge struct {
	project  string
	username string
	password string
	srv      *httptest.Server

	mu        sync.Mutex
	repos     []TestRepository
	failMode  FailMode
	failCount int
	requests  int
}

// New starts a fake forge serving project. The server is closed when the
// test ends.
func New(t *testing.T, project string) *TestForge {
	t.Helper()
	f := &TestForge{project: project}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// URL is the server origin, usable as source base URL.
func (f *TestForge) URL() string { return f.srv.URL }

// Client returns an HTTP client for the server.
func (f *TestForge) Client() *http.Client { return f.srv.Client() }

// WithCredentials makes the server require basic auth.
func (f *TestForge) WithCredentials(username, password string) *TestForge {
	f.username, f.password = username, password
	return f
}

// WithFailure makes the next n requests fail with mode. A negative n fails
// every request.
func (f *TestForge) WithFailure(mode FailMode, n int) *TestForge {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMode, f.failCount = mode, n
	return f
}

// AddRepository appends repositories in listing order.
func (f *TestForge) AddRepository(repos ...TestRepository) *TestForge {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = append(f.repos, repos...)
	return f
}

// Requests reports how many listing requests were served.
func (f *TestForge) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type value struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type page struct {
	Values        []value `json:"values"`
	IsLastPage    bool    `json:"isLastPage"`
	NextPageStart int     `json:"nextPageStart,omitempty"`
}

func (f *TestForge) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	mode := FailModeNone
	if f.failCount != 0 {
		mode = f.failMode
		if f.failCount > 0 {
			f.failCount--
		}
	}
	repos := append([]TestRepository(nil), f.repos...)
	f.mu.Unlock()

	if f.username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != f.username || pass != f.password {
			mode = FailModeAuth
		}
	}
	switch mode {
	case FailModeAuth:
		http.Error(w, `{"errors":[{"message":"Authentication failed"}]}`, http.StatusUnauthorized)
		return
	case FailModeServer:
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	case FailModeNotFound:
		http.NotFound(w, r)
		return
	}
	if r.URL.Path != "/rest/api/1.0/projects/"+f.project+"/repos" {
		http.NotFound(w, r)
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}
	start = min(max(start, 0), len(repos))
	end := min(start+limit, len(repos))

	p := page{Values: []value{}, IsLastPage: end >= len(repos)}
	for _, repo := range repos[start:end] {
		p.Values = append(p.Values, value{Name: repo.Name, Slug: repo.Slug})
	}
	if !p.IsLastPage {
		p.NextPageStart = end
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}
