package puzzleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inotherwords/internal/types"
)

const (
	FingerprintHeader = "X-User-Fingerprint"
	maxResponseBytes  = 1 << 20
)

var (
	ErrRateLimited  = errors.New("puzzleapi: rate limited")
	ErrUnauthorized = errors.New("puzzleapi: unauthorized")
	ErrNotFound     = errors.New("puzzleapi: not found")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("puzzleapi: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is lets callers match a StatusError against the sentinel errors.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Caller identifies who a request is made for. Token is the identity
// provider session token and may be empty for anonymous play.
type Caller struct {
	Token       string
	Fingerprint string
}

func (c Caller) Authenticated() bool {
	return c.Token != ""
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// Client talks to the puzzle API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient is used by tests to inject a custom transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, caller Caller, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("puzzleapi: encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("puzzleapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller.Token != "" {
		req.Header.Set("Authorization", "Bearer "+caller.Token)
	}
	if caller.Fingerprint != "" {
		req.Header.Set(FingerprintHeader, caller.Fingerprint)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("puzzleapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("puzzleapi: read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("puzzleapi: decode %s: %w", path, err)
	}
	return nil
}

// PuzzleOfTheDay fetches today's clue. The answer is never part of it.
func (c *Client) PuzzleOfTheDay(ctx context.Context, caller Caller) (types.PuzzleQuestion, error) {
	var p types.PuzzleQuestion
	if err := c.do(ctx, http.MethodGet, "/public/puzzle-of-the-day", caller, nil, &p); err != nil {
		return types.PuzzleQuestion{}, err
	}
	if p.ID == "" {
		return types.PuzzleQuestion{}, errors.New("puzzleapi: puzzle of the day has no id")
	}
	return p, nil
}

func (c *Client) AttemptStatus(ctx context.Context, caller Caller, puzzleID string) (types.AttemptStatus, error) {
	var env envelope[types.AttemptStatus]
	path := "/public/puzzle-of-the-day/attempts/" + url.PathEscape(puzzleID)
	if err := c.do(ctx, http.MethodGet, path, caller, nil, &env); err != nil {
		return types.AttemptStatus{}, err
	}
	return env.Data, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, caller Caller, puzzleID, answer string) (types.SubmitResult, error) {
	var env envelope[types.SubmitResult]
	path := "/public/puzzle-of-the-day/submit/" + url.PathEscape(puzzleID)
	if err := c.do(ctx, http.MethodPost, path, caller, types.SubmitRequest{Answer: answer}, &env); err != nil {
		return types.SubmitResult{}, err
	}
	return env.Data, nil
}

func (c *Client) GiveUp(ctx context.Context, caller Caller, puzzleID string) (types.GiveUpResult, error) {
	var env envelope[types.GiveUpResult]
	path := "/public/puzzle-of-the-day/give-up/" + url.PathEscape(puzzleID)
	if err := c.do(ctx, http.MethodPost, path, caller, struct{}{}, &env); err != nil {
		return types.GiveUpResult{}, err
	}
	return env.Data, nil
}

// Hints returns the text of the requested hint indices, keyed by index.
func (c *Client) Hints(ctx context.Context, caller Caller, puzzleID string, indices []int) (map[int]string, error) {
	if len(indices) == 0 {
		return map[int]string{}, nil
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	path := "/public/puzzle-of-the-day/hints/" + url.PathEscape(puzzleID) + "?indices=" + url.QueryEscape(strings.Join(parts, ","))

	var env envelope[map[string]string]
	if err := c.do(ctx, http.MethodGet, path, caller, nil, &env); err != nil {
		return nil, err
	}
	out := make(map[int]string, len(env.Data))
	for k, v := range env.Data {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[idx] = v
	}
	return out, nil
}

// ConvertAttempts moves attempts recorded against the fingerprint to the
// signed-in account.
func (c *Client) ConvertAttempts(ctx context.Context, caller Caller) error {
	if !caller.Authenticated() {
		return ErrUnauthorized
	}
	if caller.Fingerprint == "" {
		return nil
	}
	body := types.ConvertAttemptsRequest{UserFingerprint: caller.Fingerprint}
	return c.do(ctx, http.MethodPost, "/app/attempts/convert-attempts", Caller{Token: caller.Token}, body, nil)
}

func (c *Client) PlayerStats(ctx context.Context, caller Caller) (types.PlayerStats, error) {
	if !caller.Authenticated() {
		return types.PlayerStats{}, ErrUnauthorized
	}
	var env envelope[types.PlayerStats]
	if err := c.do(ctx, http.MethodGet, "/app/stats/player", caller, nil, &env); err != nil {
		return types.PlayerStats{}, err
	}
	return env.Data, nil
}
