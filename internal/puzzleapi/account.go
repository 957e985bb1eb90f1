package puzzleapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/samber/lo"

	"inotherwords/internal/types"
)

// Register creates the application user for a freshly signed-in identity.
// The API treats repeated calls for the same identity as a no-op.
func (c *Client) Register(ctx context.Context, caller Caller) (types.User, error) {
	if !caller.Authenticated() {
		return types.User{}, ErrUnauthorized
	}
	var u types.User
	if err := c.do(ctx, http.MethodPost, "/app/register", caller, struct{}{}, &u); err != nil {
		return types.User{}, err
	}
	return u, nil
}

func (c *Client) CurrentUser(ctx context.Context, caller Caller) (types.User, error) {
	if !caller.Authenticated() {
		return types.User{}, ErrUnauthorized
	}
	var u types.User
	if err := c.do(ctx, http.MethodGet, "/app/users/me", caller, nil, &u); err != nil {
		return types.User{}, err
	}
	return u, nil
}

// IsSuperAdmin asks the API whether the caller may use the CMS. The endpoint
// answers with a bare JSON boolean.
func (c *Client) IsSuperAdmin(ctx context.Context, caller Caller) (bool, error) {
	if !caller.Authenticated() {
		return false, nil
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/app/users/clerk/superadmin", caller, nil, &raw); err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err == nil {
		return ok, nil
	}
	var wrapped envelope[bool]
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return false, err
	}
	return wrapped.Data, nil
}

func (c *Client) CreateSubscription(ctx context.Context, caller Caller) (string, error) {
	return c.redirect(ctx, caller, "/app/stripe/create-subscription")
}

func (c *Client) BillingPortal(ctx context.Context, caller Caller) (string, error) {
	return c.redirect(ctx, caller, "/app/stripe/billing-portal")
}

func (c *Client) redirect(ctx context.Context, caller Caller, path string) (string, error) {
	if !caller.Authenticated() {
		return "", ErrUnauthorized
	}
	var r types.Redirect
	if err := c.do(ctx, http.MethodPost, path, caller, struct{}{}, &r); err != nil {
		return "", err
	}
	u, err := url.Parse(r.RedirectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errors.New("puzzleapi: invalid redirect url from " + path)
	}
	return r.RedirectURL, nil
}

func (c *Client) Transaction(ctx context.Context, caller Caller, id string) (types.Transaction, error) {
	if !caller.Authenticated() {
		return types.Transaction{}, ErrUnauthorized
	}
	var t types.Transaction
	if err := c.do(ctx, http.MethodGet, "/app/transactions/"+url.PathEscape(id), caller, nil, &t); err != nil {
		return types.Transaction{}, err
	}
	return t, nil
}

// HasActiveSubscription reports whether any of the user's subscriptions is
// currently active.
func HasActiveSubscription(u types.User) bool {
	return lo.SomeBy(u.Subscriptions, func(s types.Subscription) bool {
		return s.Status == types.SubscriptionActive
	})
}
