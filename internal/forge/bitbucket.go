// Package forge lists documentation repositories hosted on a Bitbucket Server
// instance.
package forge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// Repository is a repository of the configured project.
type Repository struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Project  string `json:"project"`
	CloneURL string `json:"clone_url"`
}

// Lister enumerates repositories.
type Lister interface {
	ListRepositories(ctx context.Context) ([]Repository, error)
}

// BitbucketConfig configures a BitbucketClient.
type BitbucketConfig struct {
	// BaseURL is scheme and host, e.g. https://git.example.com.
	BaseURL  string
	Port     int
	Project  string
	Username string
	Password string
	// PageLimit is the page size requested from the server.
	PageLimit int
}

// BitbucketClient talks to the Bitbucket Server REST API.
type BitbucketClient struct {
	*BaseForge
	cfg    BitbucketConfig
	origin string
	logger *slog.Logger
}

// NewBitbucketClient returns a client for cfg.
func NewBitbucketClient(cfg BitbucketConfig, httpClient *http.Client, logger *slog.Logger) (*BitbucketClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, errors.ValidationError("invalid Bitbucket base URL").
			WithContext("url", cfg.BaseURL).
			WithCause(err).
			Build()
	}
	if cfg.Port > 0 {
		u.Host = fmt.Sprintf("%s:%d", u.Hostname(), cfg.Port)
	}
	u.Path, u.RawQuery, u.Fragment = "", "", ""
	origin := u.String()

	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BitbucketClient{
		BaseForge: NewBaseForge(httpClient, origin+"/rest/api/1.0", cfg.Username, cfg.Password),
		cfg:       cfg,
		origin:    origin,
		logger:    logger,
	}, nil
}

type bitbucketPage struct {
	Values []struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"values"`
	IsLastPage    bool `json:"isLastPage"`
	NextPageStart int  `json:"nextPageStart"`
}

// ListRepositories returns every repository of the project sorted by slug,
// following nextPageStart until the server reports the last page.
func (c *BitbucketClient) ListRepositories(ctx context.Context) ([]Repository, error) {
	endpoint := "projects/" + url.PathEscape(c.cfg.Project) + "/repos"

	var repos []Repository
	start := 0
	for {
		q := url.Values{}
		q.Set("start", strconv.Itoa(start))
		q.Set("limit", strconv.Itoa(c.cfg.PageLimit))

		req, err := c.NewRequest(ctx, http.MethodGet, endpoint, q)
		if err != nil {
			return nil, err
		}
		var page bitbucketPage
		if err := c.DoRequest(req, &page); err != nil {
			return nil, err
		}

		for _, v := range page.Values {
			slug := v.Slug
			if slug == "" {
				slug = v.Name
			}
			repos = append(repos, Repository{
				Name:     v.Name,
				Slug:     slug,
				Project:  c.cfg.Project,
				CloneURL: c.CloneURL(slug),
			})
		}
		c.logger.Debug("Listed repository page",
			logfields.URL(req.URL.String()),
			logfields.Count(len(page.Values)))

		if page.IsLastPage || len(page.Values) == 0 {
			break
		}
		if page.NextPageStart <= start {
			return nil, errors.ForgeError("forge returned a non-advancing page cursor").
				WithContext("start", start).
				WithContext("next", page.NextPageStart).
				Build()
		}
		start = page.NextPageStart
	}

	slices.SortFunc(repos, func(a, b Repository) int { return strings.Compare(a.Slug, b.Slug) })
	return repos, nil
}

// CloneURL returns the HTTP clone URL of slug in the configured project.
func (c *BitbucketClient) CloneURL(slug string) string {
	return fmt.Sprintf("%s/scm/%s/%s.git", c.origin, c.cfg.Project, slug)
}

// Static is a Lister returning a fixed set of names.
type Static struct {
	Client *BitbucketClient
	Names  []string
}

// ListRepositories returns the configured names with their clone URLs.
func (s Static) ListRepositories(context.Context) ([]Repository, error) {
	out := make([]Repository, 0, len(s.Names))
	for _, n := range s.Names {
		r := Repository{Name: n, Slug: n}
		if s.Client != nil {
			r.Project = s.Client.cfg.Project
			r.CloneURL = s.Client.CloneURL(n)
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Repository) int { return strings.Compare(a.Slug, b.Slug) })
	return out, nil
}
