package puzzleapi

import (
	"context"
	"net/http"
	"net/url"

	"inotherwords/internal/types"
)

// Superadmin puzzle management. The API enforces the role; callers are
// expected to have checked IsSuperAdmin first.

func (c *Client) ListPuzzles(ctx context.Context, caller Caller) ([]types.Puzzle, error) {
	var out []types.Puzzle
	if err := c.do(ctx, http.MethodGet, "/superadmin/puzzles", caller, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPuzzle(ctx context.Context, caller Caller, id string) (types.Puzzle, error) {
	var p types.Puzzle
	if err := c.do(ctx, http.MethodGet, "/superadmin/puzzles/"+url.PathEscape(id), caller, nil, &p); err != nil {
		return types.Puzzle{}, err
	}
	return p, nil
}

func (c *Client) CreatePuzzle(ctx context.Context, caller Caller, p types.Puzzle) (types.Puzzle, error) {
	var out types.Puzzle
	if err := c.do(ctx, http.MethodPost, "/superadmin/puzzles", caller, p, &out); err != nil {
		return types.Puzzle{}, err
	}
	return out, nil
}

func (c *Client) UpdatePuzzle(ctx context.Context, caller Caller, p types.Puzzle) (types.Puzzle, error) {
	var out types.Puzzle
	if err := c.do(ctx, http.MethodPut, "/superadmin/puzzles/"+url.PathEscape(p.ID), caller, p, &out); err != nil {
		return types.Puzzle{}, err
	}
	return out, nil
}

// SoftDeletePuzzle archives a puzzle and returns the archived record.
func (c *Client) SoftDeletePuzzle(ctx context.Context, caller Caller, id string) (types.Puzzle, error) {
	var out types.Puzzle
	if err := c.do(ctx, http.MethodDelete, "/superadmin/puzzles/"+url.PathEscape(id), caller, nil, &out); err != nil {
		return types.Puzzle{}, err
	}
	return out, nil
}

func (c *Client) HardDeletePuzzle(ctx context.Context, caller Caller, id string) error {
	return c.do(ctx, http.MethodDelete, "/superadmin/puzzles/hard-delete/"+url.PathEscape(id), caller, nil, nil)
}

func (c *Client) DeleteUserAttempts(ctx context.Context, caller Caller, userID string) error {
	return c.do(ctx, http.MethodDelete, "/superadmin/puzzles/user/"+url.PathEscape(userID)+"/attempts", caller, nil, nil)
}
