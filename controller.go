package auth

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"uname"`
	Password string `json:"upass"`
}

// LoginResult is returned on a successful login. The caller must adopt Token
// (via Resolver.SetTokenValue or a cookie) for subsequent calls; logging in
// does not switch the resolver's active session.
type LoginResult struct {
	UID      int64  `json:"uid"`
	Username string `json:"uname"`
	Token    string `json:"token"`
}

// ChangePasswordArgs carries the password-change payload.
type ChangePasswordArgs struct {
	OldPassword    string `json:"old_password"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

// BioArgs carries optional profile fields; blank fields are left untouched.
type BioArgs struct {
	FullName string `json:"fname"`
	Site     string `json:"site"`
}

// Controller implements the per-request, authenticated-user-centric
// operations: login, logout, password change, bio change.
type Controller struct {
	resolver *Resolver
	repo     RepositoryManager
	logger   Logger
}

func NewController(resolver *Resolver, repo RepositoryManager) *Controller {
	return &Controller{
		resolver: resolver,
		repo:     repo,
		logger:   defLogger{},
	}
}

func (c *Controller) WithLogger(logger Logger) *Controller {
	c.logger = logger
	return c
}

// Login verifies credentials, derives a fresh token and inserts a session row
// with the standard expiration.
func (c *Controller) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	current, err := c.resolver.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrAlreadyLoggedIn
	}

	if creds.Username == "" || creds.Password == "" {
		return nil, ErrDataIncomplete
	}

	user, err := c.repo.Users().GetByUsername(ctx, creds.Username)
	if err != nil {
		return nil, wrapStoreError(err, "user lookup failed")
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	hash := HashPassword(user.Username, creds.Password, user.Salt)
	if user.PasswordHash == "" || !secretsEqual(hash, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	// The timestamp is a freshness input, not a security boundary: the token
	// is unpredictable because the keyed digest is.
	stamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	token := DeriveSecret(creds.Password+user.Salt+stamp, user.Salt, SecretLength)

	expire := time.Now().Add(time.Duration(c.resolver.Expiration()) * time.Second)
	session, err := c.repo.Sessions().Create(ctx, user.ID, token, expire)
	if err != nil {
		return nil, wrapStoreError(err, "session insert failed")
	}

	c.logger.Info("login uid=%d sid=%d", user.ID, session.ID)

	return &LoginResult{
		UID:      user.ID,
		Username: user.Username,
		Token:    token,
	}, nil
}

// Logout closes the current session and resets resolver state.
func (c *Controller) Logout(ctx context.Context) error {
	current, err := c.resolver.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotLoggedIn
	}

	if err := c.resolver.CloseSession(ctx, current.SID); err != nil {
		return err
	}
	c.resolver.Reset()
	return nil
}

// ChangePassword updates the stored hash for the authenticated user.
// Passwordless accounts carry no salt and cannot change password.
func (c *Controller) ChangePassword(ctx context.Context, args ChangePasswordArgs, requireOldPassword bool) error {
	current, err := c.resolver.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotLoggedIn
	}
	if current.Salt == "" {
		return ErrUserNotFound
	}

	if args.Password == "" || args.PasswordRepeat == "" {
		return ErrDataIncomplete
	}
	if requireOldPassword && args.OldPassword == "" {
		return ErrDataIncomplete
	}

	if requireOldPassword {
		old := HashPassword(current.Username, args.OldPassword, current.Salt)
		if !secretsEqual(old, current.PasswordHash) {
			return ErrOldPasswordInvalid
		}
	}

	if err := VerifyPasswordPair(args.Password, args.PasswordRepeat); err != nil {
		return wrapPasswordInvalid(err)
	}

	hash := HashPassword(current.Username, args.Password, current.Salt)
	if err := c.repo.Users().UpdatePassword(ctx, current.UID, hash); err != nil {
		return wrapStoreError(err, "password update failed")
	}
	return nil
}

// ChangeBio updates the optional profile fields, invalidates the cache entry
// for the current token and re-resolves so subsequent reads see the change.
func (c *Controller) ChangeBio(ctx context.Context, args BioArgs) error {
	current, err := c.resolver.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotLoggedIn
	}

	var fullName, site *string
	if v := strings.TrimSpace(args.FullName); v != "" {
		fullName = &v
	}
	if v := strings.TrimSpace(args.Site); v != "" {
		if err := VerifySiteURL(v); err != nil {
			return err
		}
		site = &v
	}

	if fullName == nil && site == nil {
		return nil
	}

	if err := c.repo.Users().UpdateProfile(ctx, current.UID, fullName, site); err != nil {
		return wrapStoreError(err, "profile update failed")
	}

	if _, err := c.resolver.Refresh(ctx); err != nil {
		return err
	}
	return nil
}
