package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"inotherwords/internal/auth"
	"inotherwords/internal/history"
	"inotherwords/internal/puzzleapi"
)

var testSecret = []byte("test-secret")

// fakeUpstream is a minimal puzzle API: one puzzle whose answer is "right"
// and three guesses per player.
type fakeUpstream struct {
	mu          sync.Mutex
	remaining   int
	superAdmins map[string]bool
	converted   []string
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /public/puzzle-of-the-day", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "p1", "question": "A feline on a warm metal surface", "category": "MOVIES_TV", "num_hints": 2})
	})
	mux.HandleFunc("GET /public/puzzle-of-the-day/attempts/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, map[string]any{"data": map[string]int{"attemptCount": 3 - f.remaining, "remainingGuesses": f.remaining, "maxGuesses": 3}})
	})
	mux.HandleFunc("POST /public/puzzle-of-the-day/submit/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answer string `json:"answer"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.remaining--
		remaining := f.remaining
		f.mu.Unlock()
		correct := strings.EqualFold(body.Answer, "right")
		writeJSON(w, map[string]any{"data": map[string]any{"isCorrect": correct, "remainingGuesses": remaining, "maxGuesses": 3}})
	})
	mux.HandleFunc("GET /public/puzzle-of-the-day/hints/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]string{"0": "Tennessee Williams", "1": "1958"}})
	})
	mux.HandleFunc("POST /app/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "u1"})
	})
	mux.HandleFunc("GET /app/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "u1"})
	})
	mux.HandleFunc("GET /app/users/clerk/superadmin", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.superAdmins[r.Header.Get("Authorization")])
	})
	mux.HandleFunc("POST /app/attempts/convert-attempts", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserFingerprint string `json:"userFingerprint"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.converted = append(f.converted, body.UserFingerprint)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /superadmin/puzzles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"id": "p1", "question": "A feline on a warm metal surface", "answer": "right"}})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// setupTestApp creates an App backed by a fake upstream and returns its
// router.
func setupTestApp(t *testing.T, tweak func(*Config)) (*App, *gin.Engine, *fakeUpstream) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := &fakeUpstream{remaining: 3, superAdmins: map[string]bool{}}
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	cfg := &Config{
		port:           8080,
		apiURL:         srv.URL,
		apiTimeout:     5 * time.Second,
		sessionTimeout: time.Hour,
		cookieMaxAge:   time.Hour,
		staticCacheAge: time.Minute,
		rateLimitRPS:   100,
		rateLimitBurst: 100,
		historyBackend: "memory",
		authSecret:     string(testSecret),
	}
	if tweak != nil {
		tweak(cfg)
	}
	app := newApp(cfg, puzzleapi.New(cfg.apiURL, cfg.apiTimeout), auth.NewHS256Verifier(testSecret), history.NewMemoryStore())
	return app, app.newRouter(), up
}

// client replays cookies between requests like a browser would.
type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
	token   string
}

func newClient(t *testing.T, router *gin.Engine) *client {
	return &client{t: t, router: router, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func TestHomeHandler(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("GET / returned status %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "A feline on a warm metal surface") {
		t.Errorf("home page does not show the puzzle question")
	}
	if !strings.Contains(body, "3 remaining") {
		t.Errorf("home page does not show the remaining guesses")
	}
	if !strings.Contains(body, "Hint 1 (locked)") {
		t.Errorf("hints should be locked before the first incorrect guess")
	}
	if _, ok := c.cookies[SessionCookieName]; !ok {
		t.Errorf("expected %s cookie to be set", SessionCookieName)
	}
	if _, ok := c.cookies[FingerprintCookieName]; !ok {
		t.Errorf("expected %s cookie to be set", FingerprintCookieName)
	}
}

func TestGameStateHandler(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/game-state", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /game-state returned status %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "<html") {
		t.Errorf("game state should render a fragment, not a full page")
	}
}

func TestGuessHandlerIncorrectThenCorrect(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)

	w := c.do(http.MethodPost, "/guess", url.Values{"guess": {"wrong"}}, true)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /guess returned status %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Not quite. Try again!") {
		t.Errorf("expected incorrect message, got:\n%s", body)
	}
	if !strings.Contains(body, "2 remaining") {
		t.Errorf("expected refreshed remaining count")
	}
	if !strings.Contains(body, "Get a hint") {
		t.Errorf("expected a hint button on the incorrect guess")
	}

	w = c.do(http.MethodPost, "/guess", url.Values{"guess": {"right"}}, true)
	body = w.Body.String()
	if !strings.Contains(body, "Correct! Well done.") {
		t.Errorf("expected correct message, got:\n%s", body)
	}
	if !strings.Contains(body, "Puzzle completed in 2 attempts!") {
		t.Errorf("expected completion message")
	}
	if strings.Contains(body, `name="guess"`) {
		t.Errorf("answer form should be gone once solved")
	}
}

func TestGuessHandlerEmptyGuess(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)

	w := c.do(http.MethodPost, "/guess", url.Values{"guess": {"   "}}, true)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /guess returned status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), ErrorEmptyGuess) {
		t.Errorf("expected empty guess error in body")
	}
	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "server_error") {
		t.Errorf("expected server_error HX-Trigger, got %q", trigger)
	}
}

func TestGuessHandlerOutOfGuesses(t *testing.T) {
	_, router, up := setupTestApp(t, nil)
	up.remaining = 1
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)

	w := c.do(http.MethodPost, "/guess", url.Values{"guess": {"wrong"}}, true)
	body := w.Body.String()
	if !strings.Contains(body, "No attempts remaining") {
		t.Errorf("expected no attempts label, got:\n%s", body)
	}
	if !strings.Contains(body, "Sign in to track your stats") {
		t.Errorf("anonymous players should be asked to sign in")
	}

	w = c.do(http.MethodPost, "/guess", url.Values{"guess": {"right"}}, true)
	if strings.Contains(w.Body.String(), "Correct! Well done.") {
		t.Errorf("guesses must be refused once out of attempts")
	}
}

func TestGuessHandler_InvalidMethod(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	w := c.do(http.MethodGet, "/guess", nil, false)
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("GET /guess returned status %d, want 405 or 404", w.Code)
	}
}

func TestGiveUpConfirmAnonymous(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)

	w := c.do(http.MethodGet, "/give-up", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /give-up returned status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Sign in to give up") {
		t.Errorf("anonymous give up should prompt for sign in")
	}
}

func TestGiveUpConfirmSignedIn(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	c.token = signTestToken(t, "user_1")
	c.do(http.MethodGet, "/", nil, false)

	w := c.do(http.MethodGet, "/give-up", nil, true)
	if !strings.Contains(w.Body.String(), "Are you sure you want to give up?") {
		t.Errorf("expected confirmation prompt, got:\n%s", w.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	_, router, _ := setupTestApp(t, func(cfg *Config) {
		cfg.rateLimitRPS = 1
		cfg.rateLimitBurst = 1
	})
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)

	c.do(http.MethodPost, "/retry", url.Values{}, true)
	w := c.do(http.MethodPost, "/retry", url.Values{}, true)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", w.Code)
	}
	if got := w.Header().Get("HX-Trigger"); got != "rate-limit-exceeded" {
		t.Errorf("HX-Trigger = %q, want rate-limit-exceeded", got)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["error"] != "Too many requests. Please slow down." {
		t.Errorf("unexpected error message: %q", resp["error"])
	}
}

func TestRateLimitFollowsAccountAcrossIPs(t *testing.T) {
	_, router, _ := setupTestApp(t, func(cfg *Config) {
		cfg.rateLimitRPS = 1
		cfg.rateLimitBurst = 1
	})
	token := signTestToken(t, "user_1")

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/retry", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("192.0.2.10:1234"); code == http.StatusTooManyRequests {
		t.Fatalf("first request was rate limited")
	}
	if code := send("198.51.100.7:4321"); code != http.StatusTooManyRequests {
		t.Errorf("same account from a new IP returned %d, want 429", code)
	}
}

func TestHealthzHandler(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/healthz", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz returned status %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["history_backend"] != "memory" {
		t.Errorf("history_backend = %v, want memory", resp["history_backend"])
	}
	if _, ok := resp["uptime"]; !ok {
		t.Errorf("expected uptime in response")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "trace-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "trace-42" {
		t.Errorf("X-Request-Id = %q, want trace-42", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "not valid %s")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got == "" || got == "not valid %s" {
		t.Errorf("invalid request id should be replaced, got %q", got)
	}
}

func TestThemeToggle(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)

	w := c.do(http.MethodPost, "/theme", url.Values{}, false)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("POST /theme returned status %d, want 303", w.Code)
	}
	if ck := c.cookies[ThemeCookieName]; ck == nil || ck.Value != "dark" {
		t.Fatalf("expected theme cookie to be dark, got %+v", ck)
	}
	w = c.do(http.MethodGet, "/", nil, false)
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Errorf("page should render with the dark theme")
	}
}

func TestSignInDisabled(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	w := c.do(http.MethodGet, "/sign-in", nil, false)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /sign-in returned status %d, want 503", w.Code)
	}
}

func TestSignInRedirect(t *testing.T) {
	_, router, _ := setupTestApp(t, func(cfg *Config) {
		cfg.signInURL = "https://accounts.example.com/sign-in"
		cfg.publicURL = "https://play.example.com"
	})
	c := newClient(t, router)
	w := c.do(http.MethodGet, "/sign-in", nil, false)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("GET /sign-in returned status %d, want 303", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Host != "accounts.example.com" {
		t.Errorf("redirect host = %q", loc.Host)
	}
	if got := loc.Query().Get("redirect_url"); got != "https://play.example.com/sign-in/callback" {
		t.Errorf("redirect_url = %q", got)
	}
}

func TestSignInCallbackConvertsAttempts(t *testing.T) {
	_, router, up := setupTestApp(t, nil)
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)
	fp := c.cookies[FingerprintCookieName].Value

	token := signTestToken(t, "user_1")
	w := c.do(http.MethodGet, "/sign-in/callback?token="+url.QueryEscape(token), nil, false)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("callback returned status %d, want 303", w.Code)
	}
	if ck := c.cookies[auth.SessionCookie]; ck == nil || ck.Value != token {
		t.Errorf("expected session token cookie after callback")
	}
	if _, ok := c.cookies[FingerprintCookieName]; ok {
		t.Errorf("fingerprint cookie should be cleared after conversion")
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.converted) != 1 || up.converted[0] != fp {
		t.Errorf("converted = %v, want [%s]", up.converted, fp)
	}
}

func TestCMSHiddenFromNonAdmins(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)

	if w := c.do(http.MethodGet, "/cms/api/puzzles", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("anonymous CMS request returned %d, want 404", w.Code)
	}
	c.token = signTestToken(t, "user_1")
	if w := c.do(http.MethodGet, "/cms/api/puzzles", nil, false); w.Code != http.StatusNotFound {
		t.Errorf("non-admin CMS request returned %d, want 404", w.Code)
	}
}

func TestCMSListPuzzles(t *testing.T) {
	_, router, up := setupTestApp(t, nil)
	c := newClient(t, router)
	c.token = signTestToken(t, "admin_1")
	up.superAdmins["Bearer "+c.token] = true

	w := c.do(http.MethodGet, "/cms/api/puzzles", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /cms/api/puzzles returned %d, want 200", w.Code)
	}
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0]["id"] != "p1" {
		t.Errorf("unexpected puzzles: %v", resp.Data)
	}
}

func TestGzipStaticAsset(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/static/css/style.css", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET style.css returned status %d, want 200", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip Content-Encoding for CSS")
	}
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gr.Close()
	body, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("failed to read gzip body: %v", err)
	}
	if !strings.Contains(string(body), "--primary") {
		t.Errorf("unexpected stylesheet body")
	}
}

func TestDynamicResponsesAreNotCached(t *testing.T) {
	_, router, _ := setupTestApp(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func TestCleanupIdleSessions(t *testing.T) {
	app, router, _ := setupTestApp(t, nil)
	c := newClient(t, router)
	c.do(http.MethodGet, "/", nil, false)
	if app.sessionCount() != 1 {
		t.Fatalf("sessionCount = %d, want 1", app.sessionCount())
	}

	app.SessionTimeout = -time.Minute
	if n := app.cleanupIdleSessions(); n != 1 {
		t.Errorf("cleanupIdleSessions removed %d, want 1", n)
	}
	if app.sessionCount() != 0 {
		t.Errorf("sessionCount = %d after cleanup, want 0", app.sessionCount())
	}
}

func TestPruneSubscriptionsAndLimiters(t *testing.T) {
	app, _, _ := setupTestApp(t, func(cfg *Config) {
		cfg.rateLimitRPS = 1
		cfg.rateLimitBurst = 5
	})
	now := time.Now()
	app.Subscriptions["user-expired"] = cachedSubscription{Subscribed: true, Expires: now.Add(-time.Second)}
	app.Subscriptions["user-fresh"] = cachedSubscription{Subscribed: true, Expires: now.Add(time.Minute)}
	if n := app.pruneSubscriptions(now); n != 1 {
		t.Errorf("pruneSubscriptions removed %d, want 1", n)
	}
	if _, ok := app.Subscriptions["user-fresh"]; !ok || len(app.Subscriptions) != 1 {
		t.Errorf("Subscriptions = %v, want only user-fresh", app.Subscriptions)
	}

	app.getLimiter("ip:10.0.0.1")
	busy := app.getLimiter("ip:10.0.0.2")
	if !busy.AllowN(time.Now(), 5) {
		t.Fatal("drain limiter: AllowN refused")
	}
	if n := app.pruneLimiters(); n != 1 {
		t.Errorf("pruneLimiters removed %d, want 1", n)
	}
	if _, ok := app.LimiterMap["ip:10.0.0.2"]; !ok || len(app.LimiterMap) != 1 {
		t.Errorf("LimiterMap keys = %d, want only the drained limiter", len(app.LimiterMap))
	}
}

func signTestToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := auth.Sign(testSecret, subject, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
