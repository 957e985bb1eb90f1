package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"inotherwords/internal/auth"
	"inotherwords/internal/game"
	"inotherwords/internal/history"
	"inotherwords/internal/puzzleapi"
)

// App holds the server's shared state.
type App struct {
	Config   *Config
	API      *puzzleapi.Client
	Verifier *auth.Verifier
	History  history.Store

	SessionMutex sync.RWMutex
	GameSessions map[string]*game.Session

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex

	SubscriptionMutex sync.Mutex
	Subscriptions     map[string]cachedSubscription

	StartTime      time.Time
	IsProduction   bool
	CookieMaxAge   time.Duration
	SessionTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}

// Identity is the signed-in user behind a request, if any.
type Identity struct {
	UserID string
	Token  string
}

type cachedSubscription struct {
	Subscribed bool
	Expires    time.Time
}

func newApp(cfg *Config, api *puzzleapi.Client, verifier *auth.Verifier, store history.Store) *App {
	return &App{
		Config:         cfg,
		API:            api,
		Verifier:       verifier,
		History:        store,
		GameSessions:   make(map[string]*game.Session),
		LimiterMap:     make(map[string]*rate.Limiter),
		Subscriptions:  make(map[string]cachedSubscription),
		StartTime:      time.Now(),
		IsProduction:   cfg.production,
		CookieMaxAge:   cfg.cookieMaxAge,
		SessionTimeout: cfg.sessionTimeout,
		RateLimitRPS:   cfg.rateLimitRPS,
		RateLimitBurst: cfg.rateLimitBurst,
	}
}
