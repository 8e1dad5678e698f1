package forge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/testforge"
)

func newTestClient(t *testing.T, srv *httptest.Server, project string) *BitbucketClient {
	t.Helper()
	c, err := NewBitbucketClient(BitbucketConfig{
		BaseURL:   srv.URL,
		Project:   project,
		Username:  "reader",
		Password:  "pw",
		PageLimit: 2,
	}, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func TestListRepositories_FollowsPages(t *testing.T) {
	pages := map[int]string{
		0: `{"values":[{"name":"Zeta","slug":"zeta"},{"name":"Alpha","slug":"alpha"}],"isLastPage":false,"nextPageStart":2}`,
		2: `{"values":[{"name":"Mid","slug":""}],"isLastPage":true}`,
	}
	var starts []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/1.0/projects/DOCS/repos", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "reader", user)
		require.Equal(t, "pw", pass)
		require.Equal(t, "2", r.URL.Query().Get("limit"))

		start, err := strconv.Atoi(r.URL.Query().Get("start"))
		require.NoError(t, err)
		starts = append(starts, start)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pages[start]))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "DOCS")
	repos, err := c.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, starts)

	slugs := make([]string, 0, len(repos))
	for _, r := range repos {
		slugs = append(slugs, r.Slug)
	}
	require.Equal(t, []string{"Mid", "alpha", "zeta"}, slugs)
	require.Equal(t, srv.URL+"/scm/DOCS/alpha.git", repos[1].CloneURL)
}

func TestListRepositories_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "no"})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "DOCS").ListRepositories(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryAuth))
}

func TestListRepositories_NonAdvancingCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"values":[{"slug":"a"}],"isLastPage":false,"nextPageStart":0}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "DOCS").ListRepositories(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryForge))
}

func TestListRepositories_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "DOCS").ListRepositories(context.Background())
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	require.True(t, ce.CanRetry())
}

func TestNewBitbucketClient_PortAndCloneURL(t *testing.T) {
	c, err := NewBitbucketClient(BitbucketConfig{BaseURL: "https://git.example.com/", Port: 7990, Project: "ENG"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "https://git.example.com:7990/scm/ENG/handbook.git", c.CloneURL("handbook"))

	_, err = NewBitbucketClient(BitbucketConfig{BaseURL: "not a url"}, nil, nil)
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	c, err := NewBitbucketClient(BitbucketConfig{BaseURL: "http://git.local", Port: 80, Project: "P"}, nil, nil)
	require.NoError(t, err)

	repos, err := Static{Client: c, Names: []string{"b", "a"}}.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 2)
	require.Equal(t, "a", repos[0].Slug)
	require.Equal(t, "http://git.local:80/scm/P/a.git", repos[0].CloneURL)
}

func TestListRepositories_FakeForge(t *testing.T) {
	f := testforge.New(t, "DOCS").WithCredentials("reader", "pw").AddRepository(
		testforge.TestRepository{Name: "Handbook", Slug: "handbook"},
		testforge.TestRepository{Name: "API", Slug: "api"},
		testforge.TestRepository{Name: "ops"},
		testforge.TestRepository{Name: "Design", Slug: "design"},
		testforge.TestRepository{Name: "Zed", Slug: "zed"},
	)
	c, err := NewBitbucketClient(BitbucketConfig{
		BaseURL:   f.URL(),
		Project:   "DOCS",
		Username:  "reader",
		Password:  "pw",
		PageLimit: 2,
	}, f.Client(), nil)
	require.NoError(t, err)

	repos, err := c.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, f.Requests())
	slugs := make([]string, 0, len(repos))
	for _, r := range repos {
		slugs = append(slugs, r.Slug)
	}
	require.Equal(t, []string{"api", "design", "handbook", "ops", "zed"}, slugs)

	f.WithFailure(testforge.FailModeNotFound, -1)
	_, err = c.ListRepositories(context.Background())
	require.Error(t, err)
}
