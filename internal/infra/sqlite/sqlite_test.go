package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("sqlite://"))
	assert.Equal(t, "data/app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("sqlite://data/app.db"))
	assert.Equal(t, "app.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("sqlite://app.db?mode=rwc"))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.db")
	db, err := Open("sqlite://"+path, nil)
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}
