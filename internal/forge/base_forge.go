package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// BaseForge holds the HTTP plumbing shared by forge clients.
type BaseForge struct {
	httpClient *http.Client
	apiURL     string
	username   string
	password   string
	userAgent  string
}

// NewBaseForge returns a BaseForge sending basic auth credentials when a
// username is set.
func NewBaseForge(httpClient *http.Client, apiURL, username, password string) *BaseForge {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BaseForge{
		httpClient: httpClient,
		apiURL:     apiURL,
		username:   username,
		password:   password,
		userAgent:  "docweave/1.0",
	}
}

// NewRequest builds a GET-style request for endpoint relative to the API URL.
// Query parameters in query are merged with any in endpoint.
func (b *BaseForge) NewRequest(ctx context.Context, method, endpoint string, query url.Values) (*http.Request, error) {
	u, err := url.Parse(b.apiURL)
	if err != nil {
		return nil, errors.ForgeError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", b.apiURL).
			Build()
	}

	clean := strings.TrimPrefix(endpoint, "/")
	var rawQuery string
	if idx := strings.Index(clean, "?"); idx != -1 {
		rawQuery = clean[idx+1:]
		clean = clean[:idx]
	}
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), clean)

	q, _ := url.ParseQuery(rawQuery)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	if err != nil {
		return nil, errors.ForgeError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", u.String()).
			Build()
	}
	if b.username != "" {
		req.SetBasicAuth(b.username, b.password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", b.userAgent)
	return req, nil
}

// DoRequest executes req and decodes a JSON response into result.
func (b *BaseForge) DoRequest(req *http.Request, result any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("failed to execute forge request").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Retryable().
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		body := strings.ReplaceAll(string(limited), "\n", " ")

		category := errors.CategoryForge
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = errors.CategoryAuth
		case http.StatusNotFound:
			category = errors.CategoryNotFound
		}

		builder := errors.NewError(category, fmt.Sprintf("forge API error: %s", resp.Status)).
			WithContext("status", resp.Status).
			WithContext("code", resp.StatusCode).
			WithContext("url", req.URL.String()).
			WithContext("response", body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			builder = builder.Retryable()
		}
		return builder.Build()
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.ForgeError("failed to decode response").
				WithCause(err).
				WithContext("url", req.URL.String()).
				Build()
		}
	}
	return nil
}
