package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the progression HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to every call.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

func userPath(userID string, rest ...string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	p := "/users/" + url.PathEscape(userID)
	for _, r := range rest {
		p += "/" + r
	}
	return p, nil
}

// RegisterUser creates the user's profile or refreshes its display name and country.
func (c *Client) RegisterUser(ctx context.Context, userID, displayName, country string) (core.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Profile{}, ErrEmptyUserID
	}
	in := map[string]string{"user_id": userID, "display_name": displayName, "country": country}
	var p core.Profile
	err := c.do(ctx, http.MethodPost, "/users", nil, in, &p)
	return p, err
}

// Progress fetches the user's profile, level breakdown, counters and achievements.
func (c *Client) Progress(ctx context.Context, userID string) (core.ProgressReport, error) {
	p, err := userPath(userID, "progress")
	if err != nil {
		return core.ProgressReport{}, err
	}
	var r core.ProgressReport
	err = c.do(ctx, http.MethodGet, p, nil, nil, &r)
	return r, err
}

// Notifications lists the user's newest notifications. limit <= 0 uses the server default.
func (c *Client) Notifications(ctx context.Context, userID string, limit int) ([]core.Notification, error) {
	p, err := userPath(userID, "notifications")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var body struct {
		Notifications []core.Notification `json:"notifications"`
	}
	err = c.do(ctx, http.MethodGet, p, q, nil, &body)
	return body.Notifications, err
}

// RecordAction tracks amount occurrences of action and returns the unlocks it caused.
func (c *Client) RecordAction(ctx context.Context, userID, action string, amount int64) ([]core.Unlock, error) {
	res, err := c.postAction(ctx, userID, action, amount, false)
	return res.Unlocks, err
}

// QueueAction hands the action to the server's async queue.
func (c *Client) QueueAction(ctx context.Context, userID, action string, amount int64) error {
	_, err := c.postAction(ctx, userID, action, amount, true)
	return err
}

func (c *Client) postAction(ctx context.Context, userID, action string, amount int64, async bool) (ActionResult, error) {
	p, err := userPath(userID, "actions")
	if err != nil {
		return ActionResult{}, err
	}
	in := struct {
		Action string `json:"action"`
		Amount int64  `json:"amount"`
		Async  bool   `json:"async,omitempty"`
	}{action, amount, async}
	var res ActionResult
	err = c.do(ctx, http.MethodPost, p, nil, in, &res)
	return res, err
}

// SetProgress overwrites one counter and returns the unlocks it caused.
func (c *Client) SetProgress(ctx context.Context, userID, action string, value int64) ([]core.Unlock, error) {
	p, err := userPath(userID, "progress", url.PathEscape(action))
	if err != nil {
		return nil, err
	}
	var res ActionResult
	err = c.do(ctx, http.MethodPut, p, nil, map[string]int64{"value": value}, &res)
	return res.Unlocks, err
}

// Resync asks the server to recompute the user's counters from primary records.
func (c *Client) Resync(ctx context.Context, userID string) ([]core.Unlock, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	var res ActionResult
	err := c.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/resync", nil, nil, &res)
	return res.Unlocks, err
}

// RecalculateLevel recomputes the user's cached level.
func (c *Client) RecalculateLevel(ctx context.Context, userID string) (LevelResult, error) {
	if strings.TrimSpace(userID) == "" {
		return LevelResult{}, ErrEmptyUserID
	}
	var res LevelResult
	err := c.do(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/recalculate-level", nil, nil, &res)
	return res, err
}

// LevelLeaderboard returns the global level board. viewer may be empty.
func (c *Client) LevelLeaderboard(ctx context.Context, viewer string) (leaderboard.Board, error) {
	return c.board(ctx, "/leaderboards/level", url.Values{"viewer": {viewer}})
}

// CountryLeaderboard returns one country's board; an empty country uses the viewer's.
func (c *Client) CountryLeaderboard(ctx context.Context, viewer, country string) (leaderboard.Board, error) {
	return c.board(ctx, "/leaderboards/level/country", url.Values{"viewer": {viewer}, "country": {country}})
}

// AchievementLeaderboard ranks by unlock count, or by tier of achievement when set.
func (c *Client) AchievementLeaderboard(ctx context.Context, viewer, achievement string) (leaderboard.Board, error) {
	return c.board(ctx, "/leaderboards/achievements", url.Values{"viewer": {viewer}, "achievement": {achievement}})
}

func (c *Client) board(ctx context.Context, path string, q url.Values) (leaderboard.Board, error) {
	for k, v := range q {
		if len(v) == 0 || v[0] == "" {
			q.Del(k)
		}
	}
	var b leaderboard.Board
	err := c.do(ctx, http.MethodGet, path, q, nil, &b)
	return b, err
}

// Catalog lists the achievement definitions with copy in lang.
func (c *Client) Catalog(ctx context.Context, lang string) (Catalog, error) {
	q := url.Values{}
	if lang != "" {
		q.Set("lang", lang)
	}
	var cat Catalog
	err := c.do(ctx, http.MethodGet, "/catalog", q, nil, &cat)
	return cat, err
}

// Stats returns the server's activity snapshot as raw JSON fields.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &out)
	return out, err
}

// Health probes /healthz. An unhealthy server reports its status with a 503.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &hs)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return HealthStatus{Status: "unhealthy"}, nil
	}
	return hs, err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return err
	}
	c.applyHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}
