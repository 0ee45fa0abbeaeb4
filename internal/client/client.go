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
	"sync"
	"time"

	"github.com/victornm/speedcolor/internal/api"
	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/game"
)

const defaultTimeout = 10 * time.Second

var _ game.Submitter = (*Client)(nil)

type Config struct {
	// BaseURL of the API, e.g. http://localhost:8080.
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

// Client talks to the HTTP API. The token obtained by Register or Login is kept and sent on
// every authenticated call.
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

func New(c Config) *Client {
	cl := &Client{
		base:  strings.TrimRight(c.BaseURL, "/"),
		http:  c.HTTPClient,
		token: c.Token,
	}

	if cl.http == nil {
		cl.http = &http.Client{Timeout: defaultTimeout}
	}

	return cl
}

// Error is a non 2xx answer of the API. Body holds the value of its "error" key.
type Error struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Body)
}

// Message returns the error message, or an empty string when the body carries field details.
func (e *Error) Message() string {
	var s string
	if err := json.Unmarshal(e.Body, &s); err != nil {
		return ""
	}

	return s
}

// Details returns the field messages of a validation error.
func (e *Error) Details() map[string]string {
	var m map[string]string
	if err := json.Unmarshal(e.Body, &m); err != nil {
		return nil
	}

	return m
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
}

func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", false, req, &resp); err != nil {
		return nil, err
	}

	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", false, req, &resp); err != nil {
		return nil, err
	}

	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*api.User, error) {
	var resp api.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", true, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) Summary(ctx context.Context) (*api.Summary, error) {
	var resp api.Summary
	if err := c.do(ctx, http.MethodGet, "/records/me", true, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) CreateRecord(ctx context.Context, req api.CreateRecordRequest) (*api.CreateRecordResponse, error) {
	var resp api.CreateRecordResponse
	if err := c.do(ctx, http.MethodPost, "/records", true, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Leaderboard asks for limit entries, zero leaves the size to the server.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]api.LeaderboardEntry, error) {
	path := "/records/leaderboard"
	if limit != 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var resp []api.LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, path, false, nil, &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) Stats(ctx context.Context) (*api.Stats, error) {
	var resp api.Stats
	if err := c.do(ctx, http.MethodGet, "/records/stats", false, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Submit stores the result of a finished game session.
func (c *Client) Submit(ctx context.Context, r game.Result) error {
	gameType := r.GameType
	if gameType == "" {
		gameType = domain.GameTypeSpeedColor
	}

	req := api.CreateRecordRequest{
		Score:        &r.Score,
		GameType:     &gameType,
		ReactionTime: &r.ReactionTime,
		Level:        &r.Level,
		Accuracy:     &r.Accuracy,
	}

	_, err := c.CreateRecord(ctx, req)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, authenticated bool, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal %s %s: %w", method, path, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("client: new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.Token())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var e struct {
			Error json.RawMessage `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &e); err != nil || len(e.Error) == 0 {
			e.Error, _ = json.Marshal(strings.TrimSpace(string(raw)))
		}
		return &Error{StatusCode: resp.StatusCode, Body: e.Error}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}

	return nil
}
