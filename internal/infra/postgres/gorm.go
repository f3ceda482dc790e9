package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig routes gorm warnings into zap. Queries are logged without bound values.
func GormConfig(log *zap.Logger) *gorm.Config {
	if log == nil {
		log = zap.NewNop()
	}
	return &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// NewGorm opens gorm on top of the shared pgx pool so both speak through the same bounded set of connections.
func NewGorm(pool *pgxpool.Pool, gcfg *gorm.Config) (*gorm.DB, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres: nil pool")
	}
	if gcfg == nil {
		gcfg = GormConfig(nil)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres: open gorm connection: %w", err)
	}

	return db, nil
}
