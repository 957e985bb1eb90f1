package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"inotherwords/internal/game"
	"inotherwords/internal/puzzleapi"
)

// pageData carries what every template needs: title, theme and who is
// signed in.
func (app *App) pageData(c *gin.Context, extra gin.H) gin.H {
	_, signedIn := identityFrom(c)
	data := gin.H{
		"title":    appTitle,
		"tagline":  tagline,
		"theme":    themeFrom(c),
		"signedIn": signedIn,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// renderGame renders the game area for HTMX requests and the whole page
// otherwise.
func (app *App) renderGame(c *gin.Context, s *game.Session, errMsg string) {
	if errMsg != "" && isHTMX(c) {
		payload := map[string]string{"server_error": errMsg}
		if b, jerr := json.Marshal(payload); jerr == nil {
			c.Header("HX-Trigger", string(b))
		} else {
			logWarn("Failed to marshal HX-Trigger payload: %v", jerr)
		}
	}

	s.LoadHintTexts(c.Request.Context(), app.caller(c))
	data := app.pageData(c, gin.H{
		"view":  s.View(app.viewer(c)),
		"error": errMsg,
	})
	if isHTMX(c) {
		c.HTML(http.StatusOK, "game-content", data)
		return
	}
	c.HTML(http.StatusOK, "index.html", data)
}

// homeHandler renders the main game page for the current session.
func (app *App) homeHandler(c *gin.Context) {
	s := app.getGameSession(c)
	app.refreshGameSession(c, s)
	c.Header("Cache-Control", "no-store")
	app.renderGame(c, s, "")
}

// gameStateHandler renders the current game area as an HTML fragment.
func (app *App) gameStateHandler(c *gin.Context) {
	s := app.getGameSession(c)
	app.refreshGameSession(c, s)
	s.LoadHintTexts(c.Request.Context(), app.caller(c))
	c.HTML(http.StatusOK, "game-content", app.pageData(c, gin.H{
		"view": s.View(app.viewer(c)),
	}))
}

func (app *App) guessHandler(c *gin.Context) {
	ctx := c.Request.Context()
	s := app.getGameSession(c)

	guess := c.PostForm("guess")
	res, err := s.SubmitGuess(ctx, app.caller(c), guess)
	if err != nil && !errors.Is(err, game.ErrOutOfGuesses) {
		logInfoCtx(ctx, "Guess refused for puzzle %s: %v", s.PuzzleID(), err)
		app.renderGame(c, s, userMessage(err))
		return
	}
	logInfoCtx(ctx, "Guess for puzzle %s: %s", s.PuzzleID(), res.Kind)
	app.renderGame(c, s, "")
}

// inputHandler keeps the draft guess in the session so a re-render does not
// lose it.
func (app *App) inputHandler(c *gin.Context) {
	s := app.getGameSession(c)
	s.SetInput(c.PostForm("guess"))
	c.Status(http.StatusNoContent)
}

// retryHandler reloads today's puzzle after a failed load.
func (app *App) retryHandler(c *gin.Context) {
	ctx := c.Request.Context()
	s := app.getGameSession(c)
	var errMsg string
	if err := s.LoadPuzzle(ctx, app.caller(c)); err != nil {
		logWarnCtx(ctx, "Retry failed: %v", err)
		errMsg = userMessage(err)
	}
	app.renderGame(c, s, errMsg)
}

func (app *App) revealCategoryHandler(c *gin.Context) {
	s := app.getGameSession(c)
	s.RevealCategory()
	app.renderGame(c, s, "")
}

// revealHintHandler reveals the hint at "index", or the next one when no
// index is posted, and attaches it to "guess_id".
func (app *App) revealHintHandler(c *gin.Context) {
	ctx := c.Request.Context()
	s := app.getGameSession(c)
	guessID := c.PostForm("guess_id")

	var err error
	if raw := c.PostForm("index"); raw != "" {
		idx, convErr := strconv.Atoi(raw)
		if convErr != nil {
			app.renderGame(c, s, userMessage(game.ErrInvalidHint))
			return
		}
		err = s.RevealHint(ctx, guessID, idx)
	} else {
		err = s.RevealNextHint(ctx, guessID)
	}
	if err != nil {
		logInfoCtx(ctx, "Hint reveal refused: %v", err)
		app.renderGame(c, s, userMessage(err))
		return
	}
	app.renderGame(c, s, "")
}

// giveUpConfirmHandler renders the confirmation step. Anonymous players get a
// sign-in prompt instead.
func (app *App) giveUpConfirmHandler(c *gin.Context) {
	s := app.getGameSession(c)
	_, signedIn := identityFrom(c)
	tmpl := "give-up-confirm"
	if !isHTMX(c) {
		tmpl = "index.html"
	}
	c.HTML(http.StatusOK, tmpl, app.pageData(c, gin.H{
		"view":          s.View(app.viewer(c)),
		"confirmGiveUp": signedIn,
		"giveUpSignIn":  !signedIn,
	}))
}

func (app *App) giveUpHandler(c *gin.Context) {
	ctx := c.Request.Context()
	s := app.getGameSession(c)

	if _, err := s.GiveUp(ctx, app.caller(c)); err != nil {
		logWarnCtx(ctx, "Give up failed for puzzle %s: %v", s.PuzzleID(), err)
		msg := userMessage(err)
		if msg == ErrorSomethingWrong {
			msg = ErrorGiveUpFailed
		}
		app.renderGame(c, s, msg)
		return
	}
	logInfoCtx(ctx, "Player gave up puzzle %s", s.PuzzleID())
	app.renderGame(c, s, "")
}

func (app *App) giveUpCancelHandler(c *gin.Context) {
	s := app.getGameSession(c)
	app.renderGame(c, s, "")
}

// statsHandler renders the player stats card. Gated fields are only shown to
// subscribers.
func (app *App) statsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := identityFrom(c)
	if !ok {
		c.HTML(http.StatusOK, "stats-card", app.pageData(c, gin.H{"statsSignIn": true}))
		return
	}

	stats, err := app.API.PlayerStats(ctx, puzzleapi.Caller{Token: id.Token})
	if err != nil {
		logWarnCtx(ctx, "Stats unavailable for %s: %v", id.UserID, err)
		c.HTML(http.StatusOK, "stats-card", app.pageData(c, gin.H{"statsError": ErrorStatsUnavailable}))
		return
	}
	view := game.ProjectStats(stats, app.isSubscribed(ctx, id))
	c.HTML(http.StatusOK, "stats-card", app.pageData(c, gin.H{"stats": view}))
}

// themeHandler toggles between the light and dark theme.
func (app *App) themeHandler(c *gin.Context) {
	next := "dark"
	if themeFrom(c) == "dark" {
		next = "light"
	}
	app.setCookie(c, ThemeCookieName, next, 365*24*time.Hour)
	if isHTMX(c) {
		c.Header("HX-Refresh", "true")
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, RouteHome)
}

func themeFrom(c *gin.Context) string {
	if v, err := c.Cookie(ThemeCookieName); err == nil && v == "dark" {
		return "dark"
	}
	return "light"
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"active_sessions": app.sessionCount(),
		"history_backend": app.Config.historyBackend,
		"uptime":          formatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// userMessage maps session errors to the text shown next to the form.
func userMessage(err error) string {
	var loadErr *game.PuzzleLoadError
	switch {
	case errors.As(err, &loadErr):
		return "Failed to load today's puzzle. Please try again."
	case errors.Is(err, game.ErrEmptyGuess):
		return ErrorEmptyGuess
	case errors.Is(err, game.ErrSubmitInFlight):
		return ErrorSubmitInFlight
	case errors.Is(err, game.ErrPuzzleSolved):
		return ErrorPuzzleSolved
	case errors.Is(err, game.ErrGaveUp):
		return ErrorGaveUp
	case errors.Is(err, game.ErrNoPuzzle):
		return ErrorNoPuzzle
	case errors.Is(err, game.ErrStale):
		return ErrorPuzzleChanged
	case errors.Is(err, game.ErrHintsLocked):
		return ErrorHintsLocked
	case errors.Is(err, game.ErrAuthRequired):
		return ErrorSignInToGiveUp
	case errors.Is(err, game.ErrGiveUpInFlight):
		return ErrorGiveUpInFlight
	case errors.Is(err, game.ErrOutOfGuesses):
		return game.MessageNoAttempts
	case errors.Is(err, game.ErrInvalidHint), errors.Is(err, game.ErrGuessNotFound):
		return "That hint is not available."
	case errors.Is(err, puzzleapi.ErrRateLimited):
		return game.MessageSlowDown
	default:
		return ErrorSomethingWrong
	}
}
