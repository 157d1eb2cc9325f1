package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// List pagination bounds. Out-of-range values are clamped, not rejected.
const (
	DefaultListPage  = 0
	DefaultListLimit = 10
	MaxListLimit     = 40
)

// Users is the account repository.
type Users interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, uname string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	GetOrCreate(ctx context.Context, record *User) (*User, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateProfile(ctx context.Context, id int64, fullName, site *string) error

	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page, limit int, order string) ([]*User, error)
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the Users repository over db.
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (a *users) getOne(ctx context.Context, tx bun.IDB, column string, value any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
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

func (a *users) GetByID(ctx context.Context, id int64) (*User, error) {
	return a.getOne(ctx, a.db, "uid", id)
}

func (a *users) GetByUsername(ctx context.Context, uname string) (*User, error) {
	return a.getOne(ctx, a.db, "uname", uname)
}

// GetByEmail backs the manual email-uniqueness check. Uniqueness is not a DB
// constraint because NULL-uniqueness semantics differ across dialects.
func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getOne(ctx, tx, "email", email)
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) GetOrCreate(ctx context.Context, record *User) (*User, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *users) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	existing, err := a.getOne(ctx, tx, "uname", record.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return a.CreateTx(ctx, tx, record)
}

func (a *users) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("upass = ?", passwordHash).
		Where("uid = ?", id).
		Exec(ctx)
	return err
}

func (a *users) UpdateProfile(ctx context.Context, id int64, fullName, site *string) error {
	q := a.db.NewUpdate().
		Model((*User)(nil)).
		Where("uid = ?", id)

	touched := false
	if fullName != nil {
		q = q.Set("fname = ?", *fullName)
		touched = true
	}
	if site != nil {
		q = q.Set("site = ?", *site)
		touched = true
	}
	if !touched {
		return nil
	}

	_, err := q.Exec(ctx)
	return err
}

func (a *users) Delete(ctx context.Context, id int64) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("uid = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (a *users) List(ctx context.Context, page, limit int, order string) ([]*User, error) {
	page, limit = clampPagination(page, limit)

	var records []*User
	q := a.db.NewSelect().
		Model(&records).
		Limit(limit).
		Offset(page * limit)

	switch strings.ToLower(order) {
	case "asc":
		q = q.OrderExpr("?TableAlias.uid ASC")
	case "desc":
		q = q.OrderExpr("?TableAlias.uid DESC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func clampPagination(page, limit int) (int, int) {
	if page < 0 {
		page = DefaultListPage
	}
	if limit < 1 || limit >= MaxListLimit {
		limit = DefaultListLimit
	}
	return page, limit
}

// isUniqueViolation sniffs driver error text: bun surfaces constraint failures
// differently per dialect and neither exports a portable type for it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint failed")
}
