package auth

import (
	"context"
	"time"
)

// Resolver resolves a bearer token to a session-joined user record. It owns
// per-request memo state and must not be shared across goroutines; the store
// and cache behind it are the only shared services.
//
// Resolution is one-shot per call: NoToken and MemoHit short-circuit, then the
// look-aside cache is consulted (positive and negative entries), then the
// user_sessions view. The store is always the source of truth; cache failures
// degrade to a miss.
type Resolver struct {
	repo   RepositoryManager
	cache  Cache
	logger Logger

	tokenName  string
	expiration int

	token   string
	current *SessionUser
	// noToken short-circuits repeated empty-token resolutions. Pure
	// memoization: behavior is identical with the flag removed.
	noToken bool
}

// NewResolver builds a Resolver. cache may be nil, in which case every
// resolution falls through to the store.
func NewResolver(repo RepositoryManager, cache Cache, cfg Config) (*Resolver, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Resolver{
		repo:       repo,
		cache:      cache,
		logger:     defLogger{},
		tokenName:  cfg.GetTokenName(),
		expiration: cfg.GetSessionExpiration(),
	}, nil
}

func (r *Resolver) WithLogger(logger Logger) *Resolver {
	r.logger = logger
	return r
}

// TokenName returns the cookie/header name the token travels under, so the
// transport layer can set cookies with matching names.
func (r *Resolver) TokenName() string {
	return r.tokenName
}

// Expiration returns the standard session lifetime in seconds, so the
// transport layer can set cookies with matching lifetimes.
func (r *Resolver) Expiration() int {
	return r.expiration
}

// SetTokenValue feeds in the bearer token extracted from a cookie or an
// "Authorization: <tokenName> <value>" header, and clears any memoized state
// so the next Current call re-resolves.
func (r *Resolver) SetTokenValue(token string) {
	r.token = token
	r.current = nil
	r.noToken = false
}

// Reset clears the token and all memoized state unconditionally.
func (r *Resolver) Reset() {
	r.token = ""
	r.current = nil
	r.noToken = false
}

// Current resolves the current token. It returns (nil, nil) for an
// unauthenticated caller; errors are store failures only.
func (r *Resolver) Current(ctx context.Context) (*SessionUser, error) {
	if r.current != nil {
		return r.current, nil
	}
	if r.noToken || r.token == "" {
		r.noToken = true
		return nil, nil
	}

	if su, hit := r.fromCache(ctx); hit {
		return su, nil
	}

	su, err := r.repo.Sessions().ResolveToken(ctx, r.token, time.Now())
	if err != nil {
		return nil, wrapStoreError(err, "session resolution failed")
	}

	if su == nil {
		// Confirmed invalid: overwrite whatever stale entry the cache held
		// and remember the verdict so the next doomed lookup skips the store.
		r.writeNegative(ctx)
		r.current = nil
		r.token = ""
		return nil, nil
	}

	r.writePositive(ctx, su)
	r.current = su
	return su, nil
}

// fromCache consults the look-aside cache. The second return is false when
// resolution must continue to the store.
func (r *Resolver) fromCache(ctx context.Context) (*SessionUser, bool) {
	if r.cache == nil {
		return nil, false
	}

	raw, err := r.cache.Get(ctx, r.cacheKey())
	if err != nil {
		if err != ErrCacheMiss {
			r.logger.Debug("cache read failed, treating as miss: %v", err)
		}
		return nil, false
	}

	entry, err := decodeCacheEntry(raw)
	if err != nil {
		// Corrupted payload. Never treat it as a user record; drop it and
		// let the store decide.
		r.logger.Error("corrupted cache entry for token, dropping: %v", err)
		r.deleteEntry(ctx)
		return nil, false
	}

	if entry.negative() {
		return nil, true
	}

	if !entry.ExpireAt.IsZero() && !entry.ExpireAt.After(time.Now()) {
		// Stale positive entry that outlived its session. Fall through so
		// the store confirms expiry and overwrites it.
		return nil, false
	}

	su := entry.sessionUser(r.token)
	r.current = su
	return su, true
}

func (r *Resolver) writePositive(ctx context.Context, su *SessionUser) {
	if r.cache == nil {
		return
	}
	raw, err := encodeCacheEntry(newCacheEntry(su))
	if err != nil {
		return
	}
	// Positive entries live exactly as long as their session, bounded below
	// by nothing: an already-expired session never gets cached.
	ttl := time.Until(su.ExpireAt)
	if ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, r.cacheKey(), raw, ttl); err != nil {
		r.logger.Debug("cache write failed: %v", err)
	}
}

func (r *Resolver) writeNegative(ctx context.Context) {
	if r.cache == nil {
		return
	}
	raw, err := encodeCacheEntry(negativeCacheEntry())
	if err != nil {
		return
	}
	ttl := time.Duration(r.expiration) * time.Second
	if err := r.cache.Set(ctx, r.cacheKey(), raw, ttl); err != nil {
		r.logger.Debug("cache write failed: %v", err)
	}
}

func (r *Resolver) deleteEntry(ctx context.Context) {
	if r.cache == nil || r.token == "" {
		return
	}
	if err := r.cache.Del(ctx, r.cacheKey()); err != nil {
		r.logger.Debug("cache delete failed: %v", err)
	}
}

// Refresh drops the cache entry and memo for the current token and
// re-resolves from the store. Used after profile mutations so subsequent
// reads reflect the change.
func (r *Resolver) Refresh(ctx context.Context) (*SessionUser, error) {
	r.deleteEntry(ctx)
	r.current = nil
	r.noToken = false
	return r.Current(ctx)
}

// CloseSession logically closes sid by moving its expiry to now (the row is
// retained for audit history) and drops the cache entry for the resolver's
// current token. Other sessions of the same user are unaffected.
func (r *Resolver) CloseSession(ctx context.Context, sid int64) error {
	if err := r.repo.Sessions().Close(ctx, sid, time.Now()); err != nil {
		return wrapStoreError(err, "closing session failed")
	}
	r.deleteEntry(ctx)
	return nil
}

func (r *Resolver) cacheKey() string {
	return r.tokenName + ":" + r.token
}
