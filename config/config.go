// Package config reads the frontend settings from the environment, after
// loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	BackendURL        string
	DatabaseURL       string
	SessionLifetime   time.Duration
	SecureCookie      bool
	Gzip              bool
	RatingConcurrency int
	ForumPageSize     int
	LogColor          bool
}

// Default returns the settings used when nothing is set.
func Default() Config {
	return Config{
		Addr:              ":8080",
		BackendURL:        "http://localhost:8000",
		SessionLifetime:   24 * time.Hour,
		Gzip:              true,
		RatingConcurrency: 4,
		ForumPageSize:     10,
		LogColor:          true,
	}
}

// Load reads .env files (missing files are fine) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the shape of os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}
	positive := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: %q is not a positive integer", key, v))
			return
		}
		*dst = n
	}

	str("BOOKIFY_ADDR", &c.Addr)
	str("BOOKIFY_BACKEND_URL", &c.BackendURL)
	str("DATABASE_URL", &c.DatabaseURL)
	if v, ok := lookup("BOOKIFY_SESSION_LIFETIME"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("BOOKIFY_SESSION_LIFETIME: %q is not a positive duration", v))
		} else {
			c.SessionLifetime = d
		}
	}
	boolean("BOOKIFY_SECURE_COOKIE", &c.SecureCookie)
	boolean("BOOKIFY_GZIP", &c.Gzip)
	boolean("BOOKIFY_LOG_COLOR", &c.LogColor)
	positive("BOOKIFY_RATING_CONCURRENCY", &c.RatingConcurrency)
	positive("BOOKIFY_FORUM_PAGE_SIZE", &c.ForumPageSize)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}
