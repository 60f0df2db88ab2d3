// Package client talks to the statistics REST API. It provides the section
// and summary fetchers the report loader runs on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/core"
	"github.com/cityteam/stats-sub000/internal/report"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ report.SectionFetcher = (*Client)(nil)
	_ report.SummaryFetcher = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token and uses it from then on.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Token, error) {
	var tok auth.Token
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/oauth/token", nil, body, &tok); err != nil {
		return auth.Token{}, err
	}
	c.token = tok.AccessToken
	return tok, nil
}

// Sections returns the facility's sections with their categories.
func (c *Client) Sections(ctx context.Context, facilityID int64, activeOnly bool) ([]core.Section, error) {
	q := url.Values{"withCategories": {"true"}}
	if activeOnly {
		q.Set("active", "true")
	}
	var out []core.Section
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/facilities/%d/sections", facilityID), q, nil, &out)
	return out, err
}

func (c *Client) Summaries(ctx context.Context, sq core.SummaryQuery) ([]core.Summary, error) {
	q := url.Values{"from": {sq.From}, "to": {sq.To}}
	if sq.SectionID > 0 {
		q.Set("section", strconv.FormatInt(sq.SectionID, 10))
	}
	if sq.Monthly {
		q.Set("monthly", "true")
	}
	var out []core.Summary
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/facilities/%d/summaries", sq.FacilityID), q, nil, &out)
	return out, err
}

func (c *Client) Facility(ctx context.Context, facilityID int64) (core.Facility, error) {
	var out core.Facility
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/facilities/%d", facilityID), nil, nil, &out)
	return out, err
}

// Download streams a non-JSON resource, such as a CSV export, into w.
func (c *Client) Download(ctx context.Context, path string, q url.Values, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	resp, err := c.send(ctx, method, path, q, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and turns error statuses into errors. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, in any) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, statusError(method, path, resp)
	}
	return resp, nil
}

// statusError maps an error response onto the core sentinel errors.
func statusError(method, path string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &payload) != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(b))
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = core.ErrNotFound
	case http.StatusConflict:
		kind = core.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = core.ErrValidation
	case http.StatusUnauthorized:
		kind = core.ErrUnauthorized
	case http.StatusForbidden:
		kind = core.ErrForbidden
	default:
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("%s %s: %w: %s", method, path, kind, payload.Error)
}
