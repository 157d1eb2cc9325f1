package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestFragmentsForSQLite(t *testing.T) {
	frag, err := fragmentsFor(sqlitedialect.New().Name())
	require.NoError(t, err)

	assert.Equal(t, "uid INTEGER PRIMARY KEY AUTOINCREMENT", frag.pkColumn("uid"))
	assert.Equal(t, "DATETIME('now', '+3600 seconds')", frag.timestampPlus(3600))
}

func TestFragmentsForPostgres(t *testing.T) {
	frag, err := fragmentsFor(pgdialect.New().Name())
	require.NoError(t, err)

	assert.Equal(t, "sid BIGSERIAL PRIMARY KEY", frag.pkColumn("sid"))
	assert.Equal(t, "NOW() + INTERVAL '60 seconds'", frag.timestampPlus(60))
}

func TestFragmentsForUnsupportedDialect(t *testing.T) {
	_, err := fragmentsFor(dialect.MSSQL)
	require.Error(t, err)
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.1", -1},
		{"1.1", "1.1", 0},
		{"1.10", "1.9", 1},
		{"0.0", "1.1", -1},
		{"1.1.1", "1.1", 1},
		{"1.1", "1.1.0", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, compareVersions(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
}
