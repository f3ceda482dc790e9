package sqlite

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const scheme = "sqlite://"

// Open opens an embedded SQLite database for local runs and tests.
// The URL is sqlite://<path>; sqlite://:memory: keeps everything in memory.
func Open(url string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true}
	}

	dsn := DSN(url)
	db, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: underlying db: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// DSN strips the scheme and enables foreign keys and a busy timeout.
func DSN(url string) string {
	path := strings.TrimPrefix(url, scheme)
	if path == "" {
		path = ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
