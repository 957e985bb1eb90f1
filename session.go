package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"inotherwords/internal/game"
	"inotherwords/internal/puzzleapi"
)

// getOrCreateSession retrieves the session ID from the cookie or creates a new one.
func (app *App) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		app.setCookie(c, SessionCookieName, sessionID, app.CookieMaxAge)
		logInfoCtx(c.Request.Context(), "Created new session: %s", sessionID)
	}
	return sessionID
}

// getFingerprint returns the device fingerprint used to attribute anonymous
// attempts. Signed-in callers get one too so the conversion can run later.
func (app *App) getFingerprint(c *gin.Context) string {
	if fp := c.GetString(FingerprintCookieName); fp != "" {
		return fp
	}
	fp, err := c.Cookie(FingerprintCookieName)
	if err != nil || len(fp) < 10 {
		fp = uuid.NewString()
		app.setCookie(c, FingerprintCookieName, fp, 365*24*time.Hour)
	}
	c.Set(FingerprintCookieName, fp)
	return fp
}

func (app *App) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", app.IsProduction, true)
}

func (app *App) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	// Lax so the cookies survive the redirect back from sign-in and checkout.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(maxAge.Seconds()), "/", "", app.IsProduction, true)
}

// caller describes the request to the puzzle API.
func (app *App) caller(c *gin.Context) puzzleapi.Caller {
	caller := puzzleapi.Caller{Fingerprint: app.getFingerprint(c)}
	if id, ok := identityFrom(c); ok {
		caller.Token = id.Token
	}
	return caller
}

func (app *App) viewer(c *gin.Context) game.Viewer {
	id, ok := identityFrom(c)
	if !ok {
		return game.Viewer{}
	}
	return game.Viewer{
		Authenticated: true,
		Subscribed:    app.isSubscribed(c.Request.Context(), id),
	}
}

// getGameSession returns the game session for the browser, creating it and
// loading today's puzzle on first use.
func (app *App) getGameSession(c *gin.Context) *game.Session {
	ctx := c.Request.Context()
	sessionID := app.getOrCreateSession(c)

	app.SessionMutex.RLock()
	s, exists := app.GameSessions[sessionID]
	app.SessionMutex.RUnlock()
	if exists {
		s.Touch()
		return s
	}

	app.SessionMutex.Lock()
	if s, exists = app.GameSessions[sessionID]; !exists {
		s = game.NewSession(app.API, game.NewHistory(app.History, sessionID))
		s.OnPuzzleChange = func(oldID, newID string) {
			if oldID != "" {
				logInfo("Session %s moved from puzzle %s to %s", sessionID, oldID, newID)
			}
		}
		app.GameSessions[sessionID] = s
	}
	app.SessionMutex.Unlock()

	if s.PuzzleID() == "" {
		logInfoCtx(ctx, "Loading puzzle for session: %s", sessionID)
		if err := s.LoadPuzzle(ctx, app.caller(c)); err != nil {
			logWarnCtx(ctx, "Failed to load puzzle for session %s: %v", sessionID, err)
		}
	}
	return s
}

// refreshGameSession re-fetches the puzzle so a new day replaces yesterday's
// puzzle, and the attempt status so it reflects other devices.
func (app *App) refreshGameSession(c *gin.Context, s *game.Session) {
	ctx := c.Request.Context()
	if err := s.LoadPuzzle(ctx, app.caller(c)); err != nil {
		logWarnCtx(ctx, "Puzzle refresh failed: %v", err)
	}
}

// cleanupIdleSessions evicts sessions that have not been touched within the
// session timeout. Their history stays in the history store.
func (app *App) cleanupIdleSessions() int {
	cutoff := time.Now().Add(-app.SessionTimeout)
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	removed := 0
	for id, s := range app.GameSessions {
		if s.LastAccess().Before(cutoff) {
			delete(app.GameSessions, id)
			removed++
		}
	}
	return removed
}

func (app *App) runSessionSweep(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := app.cleanupIdleSessions(); n > 0 {
				logInfo("Evicted %d idle sessions", n)
			}
			subs, lims := app.pruneSubscriptions(time.Now()), app.pruneLimiters()
			if subs+lims > 0 {
				logInfo("Pruned %d subscription cache entries and %d rate limiters", subs, lims)
			}
		}
	}
}

func (app *App) sessionCount() int {
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return len(app.GameSessions)
}
