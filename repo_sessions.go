package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Sessions is the login-instance repository.
type Sessions interface {
	Create(ctx context.Context, uid int64, token string, expire time.Time) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, uid int64, token string, expire time.Time) (*Session, error)

	// Close moves the session's expiry to at. The row stays behind as audit
	// history; other sessions of the same user are untouched.
	Close(ctx context.Context, sid int64, at time.Time) error

	// ResolveToken answers "who is this token" from the user_sessions view,
	// limited to sessions whose expiry is after now. Returns (nil, nil) when
	// the token matches no live session.
	ResolveToken(ctx context.Context, token string, now time.Time) (*SessionUser, error)
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

// NewSessionsRepository builds the Sessions repository over db.
func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (a *sessions) Create(ctx context.Context, uid int64, token string, expire time.Time) (*Session, error) {
	return a.CreateTx(ctx, a.db, uid, token, expire)
}

func (a *sessions) CreateTx(ctx context.Context, tx bun.IDB, uid int64, token string, expire time.Time) (*Session, error) {
	record := &Session{
		UserID:   uid,
		Token:    token,
		ExpireAt: expire,
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *sessions) Close(ctx context.Context, sid int64, at time.Time) error {
	_, err := a.db.NewUpdate().
		Model((*Session)(nil)).
		Set("expire = ?", at).
		Where("sid = ?", sid).
		Exec(ctx)
	return err
}

func (a *sessions) ResolveToken(ctx context.Context, token string, now time.Time) (*SessionUser, error) {
	record := &SessionUser{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.expire > ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
