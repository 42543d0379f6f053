package config

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct{ v *viper.Viper }

func New() *Config {
	vv := viper.New()
	vv.AutomaticEnv()
	return &Config{v: vv}
}

// GetDsn resolves the final DSN using env vars
func (c *Config) GetDsn() (*url.URL, error) {
	source := c.v.GetString("DSN")
	if source == "" {
		user := c.v.GetString("PGUSER")
		if user == "" {
			user = c.v.GetString("USER")
		}
		if user == "" {
			user = "postgres"
		}

		dbName := c.v.GetString("PGDATABASE")
		if dbName == "" {
			dbName = "postgres"
		}

		host := c.v.GetString("PGHOST")
		if host == "" {
			host = "localhost"
		}

		port := c.v.GetString("PGPORT")
		hasPortEnv := port != ""
		if !hasPortEnv || port == "" {
			port = "5432"
		}

		if strings.HasPrefix(host, "/") {
			socketDir := host

			// If PGHOST points to a file, derive directory and only infer port when PGPORT isn't set.
			if fi, err := os.Stat(host); err == nil && !fi.IsDir() {
				socketDir = filepath.Dir(host)
				if !hasPortEnv {
					base := filepath.Base(host)
					// Expected filename pattern: ".s.PGSQL.<port>"
					if strings.HasPrefix(base, ".s.PGSQL.") {
						if inferred := strings.TrimPrefix(base, ".s.PGSQL."); inferred != "" {
							if _, err := strconv.Atoi(inferred); err == nil {
								port = inferred
							}
						}
					}
				}
			}

			q := url.Values{}
			q.Set("host", socketDir)
			q.Set("port", port)
			q.Set("sslmode", "disable")
			source = "postgres://" + user + "@/" + dbName + "?" + q.Encode()
		} else {
			source = "postgres://" + user + "@" + host + ":" + port + "/" + dbName + "?sslmode=disable"
		}
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" {
		return nil, errors.New("invalid DSN: must be in format driver://dataSourceName")
	}
	return u, nil
}

func (c *Config) GetGitHubToken() string {
	if t := c.v.GetString("GITHUB_TOKEN"); t != "" {
		return t
	}
	return c.v.GetString("GH_TOKEN")
}

// GetSimilarwebAPIKey returns the Similarweb API key from env var SIMILARWEB_API_KEY.
// An empty key makes the rank adapter fail with a configuration error.
func (c *Config) GetSimilarwebAPIKey() string {
	return c.v.GetString("SIMILARWEB_API_KEY")
}

func (c *Config) GetAddr() string {
	port := c.v.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	host := c.v.GetString("HOST")
	if host == "" {
		host = "localhost"
	}
	return host + ":" + port
}

func (c *Config) GetServiceName() string {
	if name := c.v.GetString("SERVICE_NAME"); name != "" {
		return name
	}
	return "agentbuilders"
}

// GetAuthSubjectHeader returns the header the identity proxy uses to carry the
// authenticated subject id. Defaults to "X-Auth-Subject".
func (c *Config) GetAuthSubjectHeader() string {
	if h := c.v.GetString("AUTH_SUBJECT_HEADER"); h != "" {
		return h
	}
	return "X-Auth-Subject"
}

func (c *Config) getDuration(key string, def time.Duration) time.Duration {
	if v := c.v.GetString(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// GetGitHubRefreshInterval returns the cadence of the repository-metrics job.
// Reads duration from env var GITHUB_REFRESH_INTERVAL; defaults to 12h.
func (c *Config) GetGitHubRefreshInterval() time.Duration {
	return c.getDuration("GITHUB_REFRESH_INTERVAL", 12*time.Hour)
}

// GetPyPIRefreshInterval returns the cadence of the PyPI download-stats job.
// Reads duration from env var PYPI_REFRESH_INTERVAL; defaults to 24h.
func (c *Config) GetPyPIRefreshInterval() time.Duration {
	return c.getDuration("PYPI_REFRESH_INTERVAL", 24*time.Hour)
}

// GetNpmRefreshInterval returns the cadence of the npm download-stats job.
// Reads duration from env var NPM_REFRESH_INTERVAL; defaults to 24h.
func (c *Config) GetNpmRefreshInterval() time.Duration {
	return c.getDuration("NPM_REFRESH_INTERVAL", 24*time.Hour)
}

// GetTrendingRefreshInterval returns the cadence of the trending-score job.
// Reads duration from env var TRENDING_REFRESH_INTERVAL; defaults to 24h.
func (c *Config) GetTrendingRefreshInterval() time.Duration {
	return c.getDuration("TRENDING_REFRESH_INTERVAL", 24*time.Hour)
}

// GetTrendingRefreshOffset returns the delay of the first trending-score run
// relative to the metric jobs, so recompute reads freshly written snapshots.
// Reads duration from env var TRENDING_REFRESH_OFFSET; defaults to 1h.
func (c *Config) GetTrendingRefreshOffset() time.Duration {
	return c.getDuration("TRENDING_REFRESH_OFFSET", time.Hour)
}

func (c *Config) Set(key string, value any) { c.v.Set(key, value) }

// GetLogLevel returns the log level from env var LOG_LEVEL mapped to slog.Level.
// Recognized values: debug, info (default), warn|warning, error.
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.v.GetString("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OnLogLevelChange calls fn with the slog.Level whenever it changes.
// The initial call is made immediately.
func (c *Config) OnLogLevelChange(fn func(slog.Level)) {
	apply := func() { fn(c.GetLogLevel()) }
	apply()
	c.v.OnConfigChange(func(e fsnotify.Event) { apply() })
}

// Watch watches for changes in the config file and env vars.
func (c *Config) Watch(ctx context.Context) {
	c.v.WatchConfig()
	go func() { <-ctx.Done() }()
}
