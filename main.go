package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"inotherwords/internal/auth"
	"inotherwords/internal/game"
	"inotherwords/internal/puzzleapi"
)

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags)

	cfg := &Config{}
	if err := newCmd(cfg).Execute(); err != nil {
		logFatal("%v", err)
	}
}

func serve(ctx context.Context, cfg *Config) error {
	if cfg.production {
		gin.SetMode(gin.ReleaseMode)
	}
	logInfo("Starting %s in %s mode", appTitle, map[bool]string{true: "production", false: "development"}[cfg.production])

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newHistoryStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logWarn("Closing history store: %v", err)
		}
	}()

	app := newApp(cfg, puzzleapi.New(cfg.apiURL, cfg.apiTimeout), verifier, store)
	router := app.newRouter()
	if err := router.SetTrustedProxies(cfg.trustedProxies); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logInfo("Server starting on http://localhost:%d", cfg.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logInfo("Shutdown signal received, shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.runSessionSweep(gctx, time.Minute)
	})

	g.Go(func() error {
		return runHistoryCleanup(gctx, store, cfg.historyMaxAge, time.Hour)
	})

	err = g.Wait()
	logInfo("Server shutdown complete")
	return err
}

func newVerifier(cfg *Config) (*auth.Verifier, error) {
	switch {
	case cfg.authPublicKeyFile != "":
		pem, err := os.ReadFile(cfg.authPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read auth public key: %w", err)
		}
		return auth.NewRS256Verifier(pem)
	case cfg.authSecret != "":
		return auth.NewHS256Verifier([]byte(cfg.authSecret)), nil
	default:
		logWarn("No auth key configured: session tokens are decoded without verification")
		return auth.NewUnverified(), nil
	}
}

// newRouter wires middleware, templates and routes.
func (app *App) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{"/static/fonts"})))
	router.Use(app.cacheHeadersMiddleware(app.Config.staticCacheAge))
	router.Use(app.identityMiddleware())

	router.SetFuncMap(templateFuncs())
	if app.IsProduction && dirExists("dist") {
		logInfo("Serving assets from dist/ directory")
		router.LoadHTMLGlob("dist/templates/*.html")
		router.Static("/static", "./dist/static")
	} else {
		logInfo("Serving development assets from source directories")
		router.LoadHTMLGlob("templates/*.html")
		router.Static("/static", "./static")
	}

	app.registerRoutes(router)
	return router
}

func (app *App) registerRoutes(router *gin.Engine) {
	limited := app.rateLimitMiddleware()

	router.GET(RouteHome, app.homeHandler)
	router.GET(RouteGameState, app.gameStateHandler)
	router.POST(RouteGuess, limited, app.guessHandler)
	router.POST(RouteInput, app.inputHandler)
	router.POST(RouteRetry, limited, app.retryHandler)
	router.POST(RouteRevealCategory, limited, app.revealCategoryHandler)
	router.POST(RouteRevealHint, limited, app.revealHintHandler)
	router.GET(RouteGiveUp, app.giveUpConfirmHandler)
	router.POST(RouteGiveUp, limited, app.giveUpHandler)
	router.POST(RouteGiveUpCancel, app.giveUpCancelHandler)
	router.GET(RouteStats, app.statsHandler)
	router.POST(RouteTheme, app.themeHandler)

	router.GET(RouteSignIn, app.signInHandler)
	router.GET(RouteSignInCallback, app.signInCallbackHandler)
	router.POST(RouteSignOut, app.signOutHandler)

	router.POST(RouteSubscribe, limited, app.subscribeHandler)
	router.POST(RouteBillingPortal, limited, app.billingPortalHandler)
	router.GET(RouteCheckoutSuccess, app.checkoutSuccessHandler)
	router.GET(RouteCheckoutCancel, app.checkoutCancelHandler)

	app.registerCMSRoutes(router)

	router.GET(RouteHealthz, app.healthzHandler)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"hasPrefix": strings.HasPrefix,
		"isState": func(v game.View, state string) bool {
			return string(v.State) == state
		},
		"resultClass": func(r *game.Result) string {
			if r == nil {
				return ""
			}
			switch r.Kind {
			case game.ResultCorrect:
				return "success"
			case game.ResultFailed, game.ResultRateLimited:
				return "error"
			default:
				return "info"
			}
		},
		"clock": func(t time.Time) string {
			return t.Local().Format("3:04 PM")
		},
	}
}
