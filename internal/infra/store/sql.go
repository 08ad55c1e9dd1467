package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
)

// entry is a row of the kv_entries table.
// Seq records the first insertion of a key and survives overwrites.
type entry struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:entry_key;size:255;not null;uniqueIndex:idx_kv_entries_key"`
	Value     string    `gorm:"column:entry_value;type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (entry) TableName() string {
	return "kv_entries"
}

// SQL is a store backed by a single gorm table.
// Keys enumerate in insertion order.
type SQL struct {
	db *gorm.DB
}

// NewSQLite opens (and creates if needed) a SQLite database file.
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	return openSQL(ctx, sqlite.Open(dsn), "sqlite")
}

// NewMySQL connects to a MySQL database.
// The DSN follows github.com/go-sql-driver/mysql, e.g.
// "user:pass@tcp(127.0.0.1:3306)/playdeck?charset=utf8mb4&parseTime=True&loc=Local".
func NewMySQL(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is required")
	}
	return openSQL(ctx, mysql.Open(dsn), "mysql")
}

func openSQL(ctx context.Context, dialector gorm.Dialector, name string) (*SQL, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", name)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "failed to ping %s database", name)
	}

	if err := db.WithContext(ctx).AutoMigrate(&entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "failed to migrate kv_entries")
	}

	zlog.Info().Msgf("store opened: driver=%s", name)
	return &SQL{db: db}, nil
}

func (s *SQL) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&entry{}).
		Order("seq").
		Pluck("entry_key", &keys).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list keys")
	}
	return keys, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get key %q", key)
	}
	return e.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&entry{Key: key, Value: value}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to set key %q", key)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&entry{}).Error; err != nil {
		return errors.Wrapf(err, "failed to delete key %q", key)
	}
	return nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}

// gormWriter routes gorm's log output through zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	zlog.Debug().Msgf("gorm: "+format, args...)
}

func newGormLogger() logger.Interface {
	return logger.New(gormWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
