package auth

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// RootUID is the seeded administrator account. It is never deletable.
const RootUID int64 = 1

// FederatedPrefix marks synthetic usernames for passwordless accounts. The
// persisted format is "+name:service".
const FederatedPrefix = "+"

// AccountKind distinguishes password-carrying accounts from federated ones.
type AccountKind string

const (
	// AccountLocal is a regular account with a password and salt.
	AccountLocal AccountKind = "local"
	// AccountFederated is a passwordless account asserted by an external
	// identity provider.
	AccountFederated AccountKind = "federated"
)

// User is an account row.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID            int64     `bun:"uid,pk,autoincrement" json:"uid"`
	Username      string    `bun:"uname,notnull,unique" json:"uname"`
	PasswordHash  string    `bun:"upass,nullzero" json:"-"`
	Salt          string    `bun:"usalt,nullzero" json:"-"`
	Email         string    `bun:"email,nullzero" json:"email,omitempty"`
	EmailVerified bool      `bun:"email_verified" json:"email_verified,omitempty"`
	FullName      string    `bun:"fname,nullzero" json:"fname,omitempty"`
	Site          string    `bun:"site,nullzero" json:"site,omitempty"`
	CreatedAt     time.Time `bun:"since,nullzero,notnull,default:current_timestamp" json:"since,omitempty"`
}

// Kind reports whether the account is local or federated. The persisted column
// keeps the historical "+name:service" convention; this is the typed view over it.
func (u *User) Kind() AccountKind {
	if strings.HasPrefix(u.Username, FederatedPrefix) {
		return AccountFederated
	}
	return AccountLocal
}

// FederatedService returns the identity-provider name of a federated account,
// or "" for local accounts.
func (u *User) FederatedService() string {
	if u.Kind() != AccountFederated {
		return ""
	}
	if i := strings.LastIndex(u.Username, ":"); i > 0 {
		return u.Username[i+1:]
	}
	return ""
}

// FederatedUsername builds the synthetic persisted username for a
// passwordless account.
func FederatedUsername(name, service string) string {
	return FederatedPrefix + name + ":" + service
}

// Session is a single login instance. Sessions are closed by moving expire
// into the past, never deleted, so the row doubles as audit history.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`

	ID       int64     `bun:"sid,pk,autoincrement" json:"sid"`
	UserID   int64     `bun:"uid,notnull" json:"uid"`
	Token    string    `bun:"token,notnull" json:"-"`
	ExpireAt time.Time `bun:"expire,notnull" json:"expire"`
}

// SessionUser is the user ⋈ session projection served by the user_sessions
// view, letting the resolver answer "who is this token" with one query.
type SessionUser struct {
	bun.BaseModel `bun:"table:user_sessions,alias:sus"`

	UID           int64     `bun:"uid" json:"uid"`
	Username      string    `bun:"uname" json:"uname"`
	PasswordHash  string    `bun:"upass" json:"-"`
	Salt          string    `bun:"usalt" json:"-"`
	Email         string    `bun:"email" json:"email,omitempty"`
	EmailVerified bool      `bun:"email_verified" json:"email_verified,omitempty"`
	FullName      string    `bun:"fname" json:"fname,omitempty"`
	Site          string    `bun:"site" json:"site,omitempty"`
	SID           int64     `bun:"sid" json:"sid"`
	Token         string    `bun:"token" json:"-"`
	ExpireAt      time.Time `bun:"expire" json:"expire"`
}

// Kind mirrors User.Kind for the joined projection.
func (s *SessionUser) Kind() AccountKind {
	if strings.HasPrefix(s.Username, FederatedPrefix) {
		return AccountFederated
	}
	return AccountLocal
}
