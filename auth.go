package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"inotherwords/internal/auth"
	"inotherwords/internal/puzzleapi"
)

const subscriptionCacheTTL = time.Minute

// identityMiddleware attaches the signed-in user, if any. Requests with a bad
// or expired token continue anonymously.
func (app *App) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.Next()
			return
		}
		claims, err := app.Verifier.Verify(token)
		if err != nil {
			logWarnCtx(c.Request.Context(), "Ignoring session token: %v", err)
			c.Next()
			return
		}
		c.Set(string(identityKey), Identity{UserID: claims.Subject, Token: token})
		c.Next()
	}
}

func identityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(string(identityKey))
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// isSubscribed reports whether the user has an active subscription. Answers
// are cached briefly per user; lookup failures count as not subscribed.
func (app *App) isSubscribed(ctx context.Context, id Identity) bool {
	app.SubscriptionMutex.Lock()
	cached, ok := app.Subscriptions[id.UserID]
	app.SubscriptionMutex.Unlock()
	if ok && time.Now().Before(cached.Expires) {
		return cached.Subscribed
	}

	user, err := app.API.CurrentUser(ctx, puzzleapi.Caller{Token: id.Token})
	if err != nil {
		logWarnCtx(ctx, "Subscription lookup failed for %s: %v", id.UserID, err)
		return false
	}
	subscribed := puzzleapi.HasActiveSubscription(user)

	app.SubscriptionMutex.Lock()
	app.Subscriptions[id.UserID] = cachedSubscription{Subscribed: subscribed, Expires: time.Now().Add(subscriptionCacheTTL)}
	app.SubscriptionMutex.Unlock()
	return subscribed
}

func (app *App) forgetSubscription(userID string) {
	app.SubscriptionMutex.Lock()
	delete(app.Subscriptions, userID)
	app.SubscriptionMutex.Unlock()
}

// pruneSubscriptions drops cache entries that have expired.
func (app *App) pruneSubscriptions(now time.Time) int {
	app.SubscriptionMutex.Lock()
	defer app.SubscriptionMutex.Unlock()
	removed := 0
	for id, cached := range app.Subscriptions {
		if !now.Before(cached.Expires) {
			delete(app.Subscriptions, id)
			removed++
		}
	}
	return removed
}

// signInHandler sends the browser to the identity provider's hosted page.
func (app *App) signInHandler(c *gin.Context) {
	if app.Config.signInURL == "" {
		c.HTML(http.StatusServiceUnavailable, "message.html", app.pageData(c, gin.H{
			"heading": "Sign in",
			"message": ErrorSignInDisabled,
		}))
		return
	}
	target, err := url.Parse(app.Config.signInURL)
	if err != nil {
		logWarnCtx(c.Request.Context(), "Invalid sign-in URL %q: %v", app.Config.signInURL, err)
		c.HTML(http.StatusServiceUnavailable, "message.html", app.pageData(c, gin.H{
			"heading": "Sign in",
			"message": ErrorSignInDisabled,
		}))
		return
	}
	q := target.Query()
	q.Set("redirect_url", app.absoluteURL(c, RouteSignInCallback))
	target.RawQuery = q.Encode()
	redirect(c, target.String())
}

// signInCallbackHandler finishes sign-in: the account is registered and any
// attempts made anonymously on this device move to it. Both steps are
// best-effort.
func (app *App) signInCallbackHandler(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := identityFrom(c)
	if !ok {
		if token := c.Query("token"); token != "" {
			claims, err := app.Verifier.Verify(token)
			if err == nil {
				id, ok = Identity{UserID: claims.Subject, Token: token}, true
				app.setCookie(c, auth.SessionCookie, token, app.CookieMaxAge)
			} else {
				logWarnCtx(ctx, "Sign-in callback with invalid token: %v", err)
			}
		}
	}
	if !ok {
		c.Redirect(http.StatusSeeOther, RouteHome)
		return
	}

	caller := puzzleapi.Caller{Token: id.Token}
	if _, err := app.API.Register(ctx, caller); err != nil {
		logWarnCtx(ctx, "Register failed for %s: %v", id.UserID, err)
	}

	if fp, err := c.Cookie(FingerprintCookieName); err == nil && fp != "" {
		caller.Fingerprint = fp
		if err := app.API.ConvertAttempts(ctx, caller); err != nil {
			logWarnCtx(ctx, "Attempt conversion failed for %s: %v", id.UserID, err)
		} else {
			app.clearCookie(c, FingerprintCookieName)
			logInfoCtx(ctx, "Converted anonymous attempts for %s", id.UserID)
		}
	}

	app.forgetSubscription(id.UserID)
	c.Redirect(http.StatusSeeOther, RouteHome)
}

func (app *App) signOutHandler(c *gin.Context) {
	if id, ok := identityFrom(c); ok {
		app.forgetSubscription(id.UserID)
	}
	app.clearCookie(c, auth.SessionCookie)
	redirect(c, RouteHome)
}

func (app *App) absoluteURL(c *gin.Context, path string) string {
	if app.Config.publicURL != "" {
		base, err := url.Parse(app.Config.publicURL)
		if err == nil {
			return base.JoinPath(path).String()
		}
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: c.Request.Host, Path: path}).String()
}

// redirect uses HX-Redirect for HTMX requests so the whole page navigates.
func redirect(c *gin.Context, location string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", location)
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

func requireIdentity(c *gin.Context) (Identity, bool) {
	id, ok := identityFrom(c)
	if !ok {
		redirect(c, RouteSignIn)
	}
	return id, ok
}
