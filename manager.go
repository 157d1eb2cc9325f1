package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthorizationPolicy decides who may administer accounts. The default policy
// is root-only for add/list; delete additionally allows self-deletion.
type AuthorizationPolicy interface {
	CanAdd(ctx context.Context, actor *SessionUser) bool
	CanDelete(ctx context.Context, actor *SessionUser, target int64) bool
	CanList(ctx context.Context, actor *SessionUser) bool
}

type defaultPolicy struct{}

var _ AuthorizationPolicy = defaultPolicy{}

func (defaultPolicy) CanAdd(_ context.Context, actor *SessionUser) bool {
	return actor != nil && actor.UID == RootUID
}

func (defaultPolicy) CanDelete(_ context.Context, actor *SessionUser, target int64) bool {
	if actor == nil {
		return false
	}
	if actor.UID == RootUID && target != RootUID {
		return true
	}
	return actor.UID == target
}

func (defaultPolicy) CanList(_ context.Context, actor *SessionUser) bool {
	return actor != nil && actor.UID == RootUID
}

// AddArgs is the registration payload.
type AddArgs struct {
	Username       string `json:"uname"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
	Email          string `json:"email"`
	FullName       string `json:"fname"`
	Site           string `json:"site"`
}

// AddOptions tunes registration behavior per call site.
type AddOptions struct {
	// RequirePasswordTwice validates Password against PasswordRepeat instead
	// of against itself.
	RequirePasswordTwice bool
	// AllowSelfRegister permits unauthenticated registration.
	AllowSelfRegister bool
	// RequireEmail makes Email mandatory, format-checked and unique.
	RequireEmail bool
}

// PasswordlessArgs identifies a federated account.
type PasswordlessArgs struct {
	Username string `json:"uname"`
	Service  string `json:"uservice"`
}

// PasswordlessResult is the one flow that exposes the session id: federated
// callers may need to correlate the session row with an external identity
// provider, and there is no password-change path to recover from.
type PasswordlessResult struct {
	UID      int64  `json:"uid"`
	Username string `json:"uname"`
	Token    string `json:"token"`
	SID      int64  `json:"sid"`
}

// ListArgs is the pagination payload. Out-of-range values are clamped.
type ListArgs struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"`
}

// Manager implements registration, deletion and listing with pluggable
// authorization.
type Manager struct {
	resolver *Resolver
	repo     RepositoryManager
	policy   AuthorizationPolicy
	logger   Logger
}

func NewManager(resolver *Resolver, repo RepositoryManager) *Manager {
	return &Manager{
		resolver: resolver,
		repo:     repo,
		policy:   defaultPolicy{},
		logger:   defLogger{},
	}
}

func (m *Manager) WithPolicy(policy AuthorizationPolicy) *Manager {
	if policy != nil {
		m.policy = policy
	}
	return m
}

func (m *Manager) WithLogger(logger Logger) *Manager {
	m.logger = logger
	return m
}

// Add registers an account. Authenticated callers go through the policy;
// unauthenticated ones require AllowSelfRegister.
func (m *Manager) Add(ctx context.Context, args AddArgs, opts AddOptions) (*User, error) {
	actor, err := m.resolver.Current(ctx)
	if err != nil {
		return nil, err
	}
	if actor != nil {
		if !m.policy.CanAdd(ctx, actor) {
			return nil, ErrNotAuthorized
		}
	} else if !opts.AllowSelfRegister {
		return nil, ErrSelfRegisterNotAllowed
	}

	uname := strings.TrimSpace(args.Username)
	if uname == "" || args.Password == "" {
		return nil, ErrDataIncomplete
	}
	if err := validateUsername(uname); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(args.Email)
	if opts.RequireEmail && email == "" {
		return nil, ErrDataIncomplete
	}
	if email != "" {
		if err := VerifyEmail(email); err != nil {
			return nil, err
		}
	}

	site := strings.TrimSpace(args.Site)
	if site != "" {
		if err := VerifySiteURL(site); err != nil {
			return nil, err
		}
	}

	repeat := args.Password
	if opts.RequirePasswordTwice {
		repeat = args.PasswordRepeat
	}
	if err := VerifyPasswordPair(args.Password, repeat); err != nil {
		return nil, err
	}

	salt := NewSalt()
	record := &User{
		Username:     uname,
		PasswordHash: HashPassword(uname, args.Password, salt),
		Salt:         salt,
		Email:        email,
		FullName:     strings.TrimSpace(args.FullName),
		Site:         site,
	}

	// Email uniqueness has no DB constraint, so the check and the insert run
	// in one transaction to close the check-then-insert race.
	err = m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if email != "" {
			existing, err := m.repo.Users().GetByEmailTx(ctx, tx, email)
			if err != nil {
				return err
			}
			if existing != nil {
				return ErrEmailExists
			}
		}
		_, err := m.repo.Users().CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		if isUniqueViolation(err) {
			return nil, ErrUsernameExists
		}
		return nil, wrapStoreError(err, "user insert failed")
	}

	m.logger.Info("user added uid=%d", record.ID)
	return record, nil
}

// SelfAddPasswordless registers or reuses a federated account identified by
// "+name:service" and opens a session for it. Requires an unauthenticated
// resolver: the external identity assertion replaces credentials.
func (m *Manager) SelfAddPasswordless(ctx context.Context, args PasswordlessArgs) (*PasswordlessResult, error) {
	actor, err := m.resolver.Current(ctx)
	if err != nil {
		return nil, err
	}
	if actor != nil {
		return nil, ErrAlreadyLoggedIn
	}

	name := strings.TrimSpace(args.Username)
	service := strings.TrimSpace(args.Service)
	if name == "" || service == "" {
		return nil, ErrDataIncomplete
	}

	synthetic := FederatedUsername(name, service)

	// No salt exists, so the token is keyed by the plain name over the
	// synthetic identity plus a nonce.
	token := DeriveSecret(synthetic+uuid.NewString(), name, SecretLength)
	expire := time.Now().Add(time.Duration(m.resolver.Expiration()) * time.Second)

	// Account reuse-or-create and the session insert are atomic: a federated
	// caller never observes an account row without its session.
	var user *User
	var session *Session
	err = m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = m.repo.Users().GetOrCreateTx(ctx, tx, &User{Username: synthetic})
		if err != nil {
			return err
		}
		session, err = m.repo.Sessions().CreateTx(ctx, tx, user.ID, token, expire)
		return err
	})
	if err != nil {
		return nil, wrapStoreError(err, "federated account registration failed")
	}

	return &PasswordlessResult{
		UID:      user.ID,
		Username: user.Username,
		Token:    token,
		SID:      session.ID,
	}, nil
}

// Delete removes an account and, through the store's cascade, its sessions.
// The root account is never deletable, whatever the policy says.
func (m *Manager) Delete(ctx context.Context, target int64) error {
	actor, err := m.resolver.Current(ctx)
	if err != nil {
		return err
	}
	if actor == nil {
		return ErrNotLoggedIn
	}
	if target == RootUID {
		return ErrNotAuthorized
	}
	if !m.policy.CanDelete(ctx, actor, target) {
		return ErrNotAuthorized
	}

	record, err := m.repo.Users().GetByID(ctx, target)
	if err != nil {
		return wrapStoreError(err, "user lookup failed")
	}
	if record == nil {
		return ErrUserNotFound
	}

	if err := m.repo.Users().Delete(ctx, target); err != nil {
		return wrapStoreError(err, "user delete failed")
	}

	if actor.UID == target {
		// Self-deletion: the memoized identity no longer exists.
		m.resolver.deleteEntry(ctx)
		m.resolver.Reset()
	}

	m.logger.Info("user deleted uid=%d by uid=%d", target, actor.UID)
	return nil
}

// List pages through accounts ordered by uid. Page and limit are clamped,
// unknown order values fall back to the store's default order.
func (m *Manager) List(ctx context.Context, args ListArgs) ([]*User, error) {
	actor, err := m.resolver.Current(ctx)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, ErrNotLoggedIn
	}
	if !m.policy.CanList(ctx, actor) {
		return nil, ErrNotAuthorized
	}

	records, err := m.repo.Users().List(ctx, args.Page, args.Limit, args.Order)
	if err != nil {
		return nil, wrapStoreError(err, "user listing failed")
	}
	return records, nil
}

// validateUsername enforces, in priority order: byte length, whitespace,
// reserved federated prefix.
func validateUsername(uname string) error {
	if len(uname) > 64 {
		return ErrUsernameTooLong
	}
	if strings.ContainsAny(uname, " \t\r\n") {
		return ErrUsernameWhitespace
	}
	if strings.HasPrefix(uname, FederatedPrefix) {
		return ErrUsernameReserved
	}
	return nil
}
