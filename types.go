package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the narrow logging surface this package needs. Plug in anything
// that can format; defLogger writes to stdout.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the session options shared by the Resolver and whatever
// transport layer sets cookies or reads Authorization headers.
type Config interface {
	// GetTokenName is the cookie/header name the bearer token travels under.
	GetTokenName() string
	// GetSessionExpiration is the standard session lifetime in seconds.
	GetSessionExpiration() int
}

// MinSessionExpiration is the lowest session lifetime we accept, in seconds.
const MinSessionExpiration = 60

// ValidateConfig checks cfg before any component is built from it.
func ValidateConfig(cfg Config) error {
	if cfg == nil || cfg.GetTokenName() == "" {
		return ErrTokenNameUnset
	}
	if cfg.GetSessionExpiration() < MinSessionExpiration {
		return ErrSessionExpirationTooShort
	}
	return nil
}

// SimpleConfig is a plain-struct Config for callers that do not carry their
// own configuration container.
type SimpleConfig struct {
	TokenName         string
	SessionExpiration int
}

func (c SimpleConfig) GetTokenName() string      { return c.TokenName }
func (c SimpleConfig) GetSessionExpiration() int { return c.SessionExpiration }

// Cache is the look-aside cache consumed by the Resolver. Entries are advisory:
// every code path must behave correctly with a nil Cache.
type Cache interface {
	// Get returns the stored bytes or ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
