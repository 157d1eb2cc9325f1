package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// SchemaVersion is the layout version this build expects. EnsureSchema
// upgrades older installs up to it.
const SchemaVersion = "1.1"

const (
	usersTable    = "users"
	sessionsTable = "sessions"
	sessionsView  = "user_sessions"
	metaTable     = "schema_info"
)

// dialectFragments are the SQL snippets that differ between the supported
// dialects. The rest of the DDL is shared verbatim.
type dialectFragments struct {
	pkColumn         func(name string) string
	engineClause     string
	currentTimestamp string
	timestampPlus    func(seconds int) string
}

func fragmentsFor(name dialect.Name) (dialectFragments, error) {
	switch name {
	case dialect.SQLite:
		return dialectFragments{
			pkColumn:         func(c string) string { return c + " INTEGER PRIMARY KEY AUTOINCREMENT" },
			engineClause:     "",
			currentTimestamp: "CURRENT_TIMESTAMP",
			timestampPlus: func(seconds int) string {
				return fmt.Sprintf("DATETIME('now', '+%d seconds')", seconds)
			},
		}, nil
	case dialect.PG:
		return dialectFragments{
			pkColumn:         func(c string) string { return c + " BIGSERIAL PRIMARY KEY" },
			engineClause:     "",
			currentTimestamp: "CURRENT_TIMESTAMP",
			timestampPlus: func(seconds int) string {
				return fmt.Sprintf("NOW() + INTERVAL '%d seconds'", seconds)
			},
		}, nil
	default:
		return dialectFragments{}, goerrors.New(
			"unsupported SQL dialect: "+name.String(),
			goerrors.CategoryValidation,
		)
	}
}

// schemaUpgrade is one ordered migration step. Steps run when the stored
// version is behind their version, oldest first.
type schemaUpgrade struct {
	version    string
	statements []string
}

var schemaUpgrades = []schemaUpgrade{
	{
		version: "1.1",
		statements: []string{
			`ALTER TABLE users ADD COLUMN email_verified BOOLEAN NOT NULL DEFAULT FALSE`,
		},
	},
}

// SchemaManager installs and upgrades the persisted layout. Any DDL failure is
// returned as-is: partial schema states are unsafe, callers must abort startup.
type SchemaManager struct {
	db     *bun.DB
	logger Logger
}

func NewSchemaManager(db *bun.DB) *SchemaManager {
	return &SchemaManager{
		db:     db,
		logger: defLogger{},
	}
}

func (m *SchemaManager) WithLogger(logger Logger) *SchemaManager {
	m.logger = logger
	return m
}

// EnsureSchema makes the store usable: installs the relations on first boot,
// otherwise runs any pending upgrade steps.
func (m *SchemaManager) EnsureSchema(ctx context.Context) error {
	if !m.probeUsers(ctx) {
		m.logger.Info("schema: users relation missing, installing version %s", SchemaVersion)
		return m.install(ctx)
	}

	stored, err := m.readVersion(ctx)
	if err != nil {
		// No metadata relation: a pre-versioning install. Record it as 0.0
		// and let the upgrade chain bring it forward.
		stored = "0.0"
		if err := m.createMetaTable(ctx); err != nil {
			return err
		}
	}

	if compareVersions(stored, SchemaVersion) >= 0 {
		return nil
	}

	return m.upgrade(ctx, stored)
}

// ForceReinstall drops every relation this package owns (ignoring missing
// ones) and reinstalls from scratch. Destroys all users and sessions.
func (m *SchemaManager) ForceReinstall(ctx context.Context) error {
	drops := []string{
		"DROP VIEW " + sessionsView,
		"DROP TABLE " + sessionsTable,
		"DROP TABLE " + usersTable,
		"DROP TABLE " + metaTable,
	}
	for _, stmt := range drops {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil && !isMissingRelation(err) {
			return err
		}
	}
	return m.install(ctx)
}

// probeUsers runs a lightweight query against the users relation; an error is
// read as "relation absent".
func (m *SchemaManager) probeUsers(ctx context.Context) bool {
	rows, err := m.db.QueryContext(ctx, "SELECT uid FROM "+usersTable+" LIMIT 1")
	if err != nil {
		return false
	}
	defer rows.Close()
	return rows.Err() == nil
}

func (m *SchemaManager) install(ctx context.Context) error {
	frag, err := fragmentsFor(m.db.Dialect().Name())
	if err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE %s (
	%s,
	uname VARCHAR(64) NOT NULL UNIQUE,
	upass VARCHAR(64),
	usalt VARCHAR(16),
	email VARCHAR(255),
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	fname VARCHAR(255),
	site VARCHAR(255),
	since TIMESTAMP NOT NULL DEFAULT %s
)%s`, usersTable, frag.pkColumn("uid"), frag.currentTimestamp, frag.engineClause),
		fmt.Sprintf(`CREATE TABLE %s (
	%s,
	uid INTEGER NOT NULL REFERENCES %s (uid) ON DELETE CASCADE,
	token VARCHAR(64) NOT NULL,
	expire TIMESTAMP NOT NULL
)%s`, sessionsTable, frag.pkColumn("sid"), usersTable, frag.engineClause),
		fmt.Sprintf(`CREATE VIEW %s AS
SELECT usr.uid, usr.uname, usr.upass, usr.usalt, usr.email, usr.email_verified,
	usr.fname, usr.site, ses.sid, ses.token, ses.expire
FROM %s usr
JOIN %s ses ON ses.uid = usr.uid`, sessionsView, usersTable, sessionsTable),
	}

	for _, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return wrapStoreError(err, "schema install failed")
		}
	}

	if err := m.seedRoot(ctx); err != nil {
		return err
	}

	if err := m.createMetaTable(ctx); err != nil {
		return err
	}
	return m.writeVersion(ctx, SchemaVersion)
}

// seedRoot creates the uid=1 administrator with the default credentials.
func (m *SchemaManager) seedRoot(ctx context.Context) error {
	salt := NewSalt()
	root := &User{
		ID:           RootUID,
		Username:     "root",
		PasswordHash: HashPassword("root", "admin", salt),
		Salt:         salt,
	}
	if _, err := NewUsersRepository(m.db).Create(ctx, root); err != nil {
		return wrapStoreError(err, "seeding root administrator failed")
	}
	return nil
}

func (m *SchemaManager) createMetaTable(ctx context.Context) error {
	stmt := fmt.Sprintf("CREATE TABLE %s (version VARCHAR(16) NOT NULL)", metaTable)
	if _, err := m.db.ExecContext(ctx, stmt); err != nil {
		return wrapStoreError(err, "creating schema metadata failed")
	}
	return nil
}

func (m *SchemaManager) readVersion(ctx context.Context) (string, error) {
	var version string
	row := m.db.QueryRowContext(ctx, "SELECT version FROM "+metaTable+" LIMIT 1")
	if err := row.Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// writeVersion replaces the single metadata row.
func (m *SchemaManager) writeVersion(ctx context.Context, version string) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM "+metaTable); err != nil {
		return wrapStoreError(err, "clearing schema version failed")
	}
	if _, err := m.db.ExecContext(ctx, "INSERT INTO "+metaTable+" (version) VALUES (?)", version); err != nil {
		return wrapStoreError(err, "writing schema version failed")
	}
	return nil
}

func (m *SchemaManager) upgrade(ctx context.Context, stored string) error {
	for _, step := range schemaUpgrades {
		if compareVersions(stored, step.version) >= 0 {
			continue
		}
		m.logger.Info("schema: upgrading %s -> %s", stored, step.version)
		for _, stmt := range step.statements {
			if _, err := m.db.ExecContext(ctx, stmt); err != nil {
				return wrapStoreError(err, "schema upgrade to "+step.version+" failed")
			}
		}
		stored = step.version
	}
	return m.writeVersion(ctx, SchemaVersion)
}

// compareVersions orders dotted numeric versions: -1, 0, 1.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func isMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such view") ||
		strings.Contains(msg, "does not exist")
}
