package auth_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-session-auth"
)

const (
	testTokenName  = "gsid"
	testExpiration = 3600
)

type testEnv struct {
	db    *bun.DB
	mr    *miniredis.Miniredis
	cache auth.Cache
	repo  auth.RepositoryManager
	cfg   auth.SimpleConfig
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, auth.NewSchemaManager(db).EnsureSchema(context.Background()))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		_ = db.Close()
	})

	return &testEnv{
		db:    db,
		mr:    mr,
		cache: auth.NewRedisCache(client),
		repo:  auth.NewRepositoryManager(db),
		cfg: auth.SimpleConfig{
			TokenName:         testTokenName,
			SessionExpiration: testExpiration,
		},
	}
}

func (e *testEnv) resolver(t *testing.T) *auth.Resolver {
	t.Helper()
	r, err := auth.NewResolver(e.repo, e.cache, e.cfg)
	require.NoError(t, err)
	return r
}

func (e *testEnv) resolverNoCache(t *testing.T) *auth.Resolver {
	t.Helper()
	r, err := auth.NewResolver(e.repo, nil, e.cfg)
	require.NoError(t, err)
	return r
}

// registerLocalUser seeds an account straight through the repository,
// bypassing Manager authorization.
func registerLocalUser(t *testing.T, e *testEnv, uname, pass, email string) *auth.User {
	t.Helper()

	salt := auth.NewSalt()
	record := &auth.User{
		Username:     uname,
		PasswordHash: auth.HashPassword(uname, pass, salt),
		Salt:         salt,
		Email:        email,
	}
	created, err := e.repo.Users().Create(context.Background(), record)
	require.NoError(t, err)
	return created
}

// loginAs runs a full login on a fresh resolver and returns a resolver that
// has adopted the issued token, plus its controller.
func loginAs(t *testing.T, e *testEnv, uname, pass string) (*auth.Resolver, *auth.Controller, *auth.LoginResult) {
	t.Helper()

	r := e.resolver(t)
	c := auth.NewController(r, e.repo)

	res, err := c.Login(context.Background(), auth.Credentials{Username: uname, Password: pass})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	r.SetTokenValue(res.Token)
	return r, c, res
}

func cacheKey(token string) string {
	return testTokenName + ":" + token
}
