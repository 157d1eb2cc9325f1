package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	user := registerLocalUser(t, env, "jack", "qwer", "")

	r := env.resolver(t)
	c := auth.NewController(r, env.repo)

	res, err := c.Login(ctx, auth.Credentials{Username: "jack", Password: "qwer"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.UID)
	assert.Equal(t, "jack", res.Username)
	assert.NotEmpty(t, res.Token)

	// Login does not adopt the token; the caller does.
	cur, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	r.SetTokenValue(res.Token)
	cur, err = r.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, user.ID, cur.UID)
}

func TestLoginTokensDiffer(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	c1 := auth.NewController(env.resolver(t), env.repo)
	c2 := auth.NewController(env.resolver(t), env.repo)

	res1, err := c1.Login(ctx, auth.Credentials{Username: "jack", Password: "qwer"})
	require.NoError(t, err)
	res2, err := c2.Login(ctx, auth.Credentials{Username: "jack", Password: "qwer"})
	require.NoError(t, err)

	assert.NotEqual(t, res1.Token, res2.Token, "concurrent sessions carry distinct tokens")
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	tests := []struct {
		name  string
		creds auth.Credentials
		want  error
	}{
		{"missing password", auth.Credentials{Username: "jack"}, auth.ErrDataIncomplete},
		{"missing username", auth.Credentials{Password: "qwer"}, auth.ErrDataIncomplete},
		{"unknown user", auth.Credentials{Username: "nobody", Password: "qwer"}, auth.ErrUserNotFound},
		{"wrong password", auth.Credentials{Username: "jack", Password: "wrong"}, auth.ErrWrongPassword},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := auth.NewController(env.resolver(t), env.repo)
			_, err := c.Login(ctx, tc.creds)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoginAlreadyLoggedIn(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	_, c, _ := loginAs(t, env, "jack", "qwer")

	_, err := c.Login(ctx, auth.Credentials{Username: "jack", Password: "qwer"})
	assert.ErrorIs(t, err, auth.ErrAlreadyLoggedIn)
}

func TestLoginPasswordlessAccountRejected(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)

	// Federated accounts carry no credentials at all.
	_, err := env.repo.Users().Create(ctx, &auth.User{Username: "+jack:github"})
	require.NoError(t, err)

	c := auth.NewController(env.resolver(t), env.repo)
	_, err = c.Login(ctx, auth.Credentials{Username: "+jack:github", Password: "anything"})
	assert.ErrorIs(t, err, auth.ErrWrongPassword)
}

func TestLogoutIdempotence(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	_, c, _ := loginAs(t, env, "jack", "qwer")

	require.NoError(t, c.Logout(ctx))
	assert.ErrorIs(t, c.Logout(ctx), auth.ErrNotLoggedIn)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	r, c, res := loginAs(t, env, "jack", "qwer")
	require.NoError(t, c.Logout(ctx))

	r.SetTokenValue(res.Token)
	cur, err := r.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur, "a logged-out token must not resolve")
}

func TestChangePasswordRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	_, c, _ := loginAs(t, env, "jack", "qwer")

	err := c.ChangePassword(ctx, auth.ChangePasswordArgs{
		OldPassword:    "qwer",
		Password:       "s3cret",
		PasswordRepeat: "s3cret",
	}, true)
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))

	// Old password no longer verifies.
	c2 := auth.NewController(env.resolver(t), env.repo)
	_, err = c2.Login(ctx, auth.Credentials{Username: "jack", Password: "qwer"})
	assert.ErrorIs(t, err, auth.ErrWrongPassword)

	// The new one does.
	c3 := auth.NewController(env.resolver(t), env.repo)
	_, err = c3.Login(ctx, auth.Credentials{Username: "jack", Password: "s3cret"})
	require.NoError(t, err)
}

func TestChangePasswordFailures(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	t.Run("not logged in", func(t *testing.T) {
		c := auth.NewController(env.resolver(t), env.repo)
		err := c.ChangePassword(ctx, auth.ChangePasswordArgs{Password: "x", PasswordRepeat: "x"}, false)
		assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, c, _ := loginAs(t, env, "jack", "qwer")
		err := c.ChangePassword(ctx, auth.ChangePasswordArgs{Password: "s3cret"}, false)
		assert.ErrorIs(t, err, auth.ErrDataIncomplete)
	})

	t.Run("old password required", func(t *testing.T) {
		_, c, _ := loginAs(t, env, "jack", "qwer")
		err := c.ChangePassword(ctx, auth.ChangePasswordArgs{
			Password: "s3cret", PasswordRepeat: "s3cret",
		}, true)
		assert.ErrorIs(t, err, auth.ErrDataIncomplete)
	})

	t.Run("old password invalid", func(t *testing.T) {
		_, c, _ := loginAs(t, env, "jack", "qwer")
		err := c.ChangePassword(ctx, auth.ChangePasswordArgs{
			OldPassword: "nope", Password: "s3cret", PasswordRepeat: "s3cret",
		}, true)
		assert.ErrorIs(t, err, auth.ErrOldPasswordInvalid)
	})

	t.Run("pair mismatch carries sub-reason", func(t *testing.T) {
		_, c, _ := loginAs(t, env, "jack", "qwer")
		err := c.ChangePassword(ctx, auth.ChangePasswordArgs{
			OldPassword: "qwer", Password: "s3cret", PasswordRepeat: "terc3s",
		}, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrPasswordMismatch)

		var rich *goerrors.Error
		require.ErrorAs(t, err, &rich)
		assert.Equal(t, "PASSWORD_INVALID", rich.TextCode)
	})

	t.Run("too short carries sub-reason", func(t *testing.T) {
		_, c, _ := loginAs(t, env, "jack", "qwer")
		err := c.ChangePassword(ctx, auth.ChangePasswordArgs{
			OldPassword: "qwer", Password: "ab", PasswordRepeat: "ab",
		}, true)
		assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
	})
}

func TestChangePasswordPasswordlessAccount(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)

	r := env.resolver(t)
	m := auth.NewManager(r, env.repo)
	res, err := m.SelfAddPasswordless(ctx, auth.PasswordlessArgs{Username: "jack", Service: "github"})
	require.NoError(t, err)

	r2 := env.resolver(t)
	r2.SetTokenValue(res.Token)
	c := auth.NewController(r2, env.repo)

	err = c.ChangePassword(ctx, auth.ChangePasswordArgs{
		Password: "s3cret", PasswordRepeat: "s3cret",
	}, false)
	assert.ErrorIs(t, err, auth.ErrUserNotFound, "no salt means no password to change")
}

func TestChangeBio(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	r, c, _ := loginAs(t, env, "jack", "qwer")

	require.NoError(t, c.ChangeBio(ctx, auth.BioArgs{
		FullName: "Jack Sparrow",
		Site:     "https://example.org/jack",
	}))

	// The resolver re-resolved, so reads reflect the change immediately.
	cur, err := r.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "Jack Sparrow", cur.FullName)
	assert.Equal(t, "https://example.org/jack", cur.Site)
}

func TestChangeBioPartial(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	r, c, _ := loginAs(t, env, "jack", "qwer")

	require.NoError(t, c.ChangeBio(ctx, auth.BioArgs{FullName: "Jack"}))
	require.NoError(t, c.ChangeBio(ctx, auth.BioArgs{Site: "https://example.org"}))

	cur, err := r.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "Jack", cur.FullName, "blank fields are left untouched")
	assert.Equal(t, "https://example.org", cur.Site)
}

func TestChangeBioValidation(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t)
	registerLocalUser(t, env, "jack", "qwer", "")

	_, c, _ := loginAs(t, env, "jack", "qwer")
	assert.ErrorIs(t, c.ChangeBio(ctx, auth.BioArgs{Site: "::nope::"}), auth.ErrSiteURLInvalid)

	c2 := auth.NewController(env.resolver(t), env.repo)
	assert.ErrorIs(t, c2.ChangeBio(ctx, auth.BioArgs{FullName: "x"}), auth.ErrNotLoggedIn)
}
