package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "1.0.0"

type Config struct {
	port           int
	production     bool
	apiURL         string
	apiTimeout     time.Duration
	sessionTimeout time.Duration
	cookieMaxAge   time.Duration
	staticCacheAge time.Duration
	rateLimitRPS   int
	rateLimitBurst int
	trustedProxies []string

	historyBackend string
	historyDir     string
	historyMaxAge  time.Duration
	redisAddr      string
	redisPassword  string
	redisDB        int

	authSecret        string
	authPublicKeyFile string
	signInURL         string
	publicURL         string
}

// applyEnvironment honours GIN_MODE=release and ENV=production as production
// switches. It runs before validate so production rules apply to them too.
func (c *Config) applyEnvironment() {
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production" {
		c.production = true
	}
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	u, err := url.Parse(c.apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid --api-url: %q", c.apiURL)
	}
	switch c.historyBackend {
	case "file", "memory":
	case "redis":
		if c.redisAddr == "" {
			return errors.New("--redis-addr is required when --history-backend=redis")
		}
	default:
		return fmt.Errorf("unknown history backend %q (supported: file, redis, memory)", c.historyBackend)
	}
	if c.authSecret != "" && c.authPublicKeyFile != "" {
		return errors.New("only one of --auth-secret and --auth-public-key-file may be set")
	}
	if c.production && c.authSecret == "" && c.authPublicKeyFile == "" {
		return errors.New("production mode requires --auth-secret or --auth-public-key-file")
	}
	if c.rateLimitRPS <= 0 || c.rateLimitBurst <= 0 {
		return errors.New("rate limit rps and burst must be positive")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "inotherwords",
		Short:         "A daily puzzle guessing game, served as server-rendered HTMX pages.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.applyEnvironment()
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PORT)")
	fs.BoolVar(&cfg.production, "production", false, "serve minified assets and mark cookies secure (env: PRODUCTION)")
	fs.StringVar(&cfg.apiURL, "api-url", "http://localhost:3000", "base URL of the puzzle API (env: API_URL)")
	fs.DurationVar(&cfg.apiTimeout, "api-timeout", 10*time.Second, "timeout for puzzle API calls (env: API_TIMEOUT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 2*time.Hour, "time before idle game sessions are evicted from memory (env: SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.cookieMaxAge, "cookie-max-age", 24*time.Hour, "lifetime of the session cookie (env: COOKIE_MAX_AGE)")
	fs.DurationVar(&cfg.staticCacheAge, "static-cache-age", 5*time.Minute, "Cache-Control max-age for static assets in production (env: STATIC_CACHE_AGE)")
	fs.IntVar(&cfg.rateLimitRPS, "rate-limit-rps", 5, "requests per second allowed per client IP on actions (env: RATE_LIMIT_RPS)")
	fs.IntVar(&cfg.rateLimitBurst, "rate-limit-burst", 10, "burst size for the per-IP rate limiter (env: RATE_LIMIT_BURST)")
	fs.StringSliceVar(&cfg.trustedProxies, "trusted-proxies", []string{"127.0.0.1"}, "proxies whose forwarded headers are trusted (env: TRUSTED_PROXIES)")

	fs.StringVar(&cfg.historyBackend, "history-backend", "file", "guess history store: file, redis or memory (env: HISTORY_BACKEND)")
	fs.StringVar(&cfg.historyDir, "history-dir", "data/history", "directory for the file history store (env: HISTORY_DIR)")
	fs.DurationVar(&cfg.historyMaxAge, "history-max-age", 48*time.Hour, "age after which stored guess history expires (env: HISTORY_MAX_AGE)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "redis address for the redis history store (env: REDIS_ADDR)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: REDIS_PASSWORD)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: REDIS_DB)")

	fs.StringVar(&cfg.authSecret, "auth-secret", "", "HS256 secret for identity tokens (env: AUTH_SECRET)")
	fs.StringVar(&cfg.authPublicKeyFile, "auth-public-key-file", "", "PEM file with the RS256 public key for identity tokens (env: AUTH_PUBLIC_KEY_FILE)")
	fs.StringVar(&cfg.signInURL, "sign-in-url", "", "hosted sign-in page of the identity provider (env: SIGN_IN_URL)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "externally visible base URL, used for sign-in redirects (env: PUBLIC_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, envValue(v, f))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("inotherwords v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}

// envValue renders a bound value so fs.Set accepts it. Slice flags come back
// from viper as []string and need joining.
func envValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return fmt.Sprintf("%v", v.Get(f.Name))
}
