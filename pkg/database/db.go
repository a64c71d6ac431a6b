package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jafo2128/dmrshark/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Use modernc.org/sqlite (pure Go, no CGO)
	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path          string // Path to SQLite database file
	RetentionDays int    // Drop history older than this; 0 keeps everything
}

// DB is the monitor's history store: one row per finished voice call
// and per final SMS outcome. The tick loop is the only writer; the store
// runs in WAL mode so readers of the history never block it. The web
// surface does not read the store.
type DB struct {
	db  *gorm.DB
	log *logger.Logger
}

// gormLog routes gorm's complaints (slow queries, errors) into the
// monitor's logger at warn level. History writes happen between ticks,
// so anything slow here is worth surfacing.
type gormLog struct {
	log *logger.Logger
}

func (g gormLog) Printf(format string, args ...interface{}) {
	g.log.Warn(fmt.Sprintf(format, args...))
}

// NewDB opens the history store, creating and migrating it as needed,
// and applies the configured retention.
func NewDB(cfg Config, log *logger.Logger) (*DB, error) {
	path := cfg.Path
	if path == "" {
		path = "dmrshark.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("can't create database directory: %w", err)
		}
	}

	// modernc's driver takes the pragmas as DSN parameters: WAL so history
	// reads never block the tick loop's writes, relaxed syncing (this
	// is history, not state), and a busy timeout for the rare overlap.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.New(gormLog{log: log}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	if err := db.AutoMigrate(&CallLog{}, &SMSLog{}); err != nil {
		return nil, fmt.Errorf("can't migrate history tables: %w", err)
	}

	// One writer plus a handful of history readers; no reason to let the
	// pool grow past that.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
	}

	store := &DB{db: db, log: log}

	if cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		if err := store.PruneBefore(cutoff); err != nil {
			log.Warn("can't prune old history", logger.Error(err))
		}
	}

	log.Info("history store opened",
		logger.String("path", path),
		logger.Int("retention_days", cfg.RetentionDays))

	return store, nil
}

// PruneBefore drops call and SMS history older than the cutoff.
func (d *DB) PruneBefore(cutoff time.Time) error {
	calls := d.db.Where("start_time < ?", cutoff).Delete(&CallLog{})
	if calls.Error != nil {
		return fmt.Errorf("can't prune call history: %w", calls.Error)
	}
	sms := d.db.Where("created_at < ?", cutoff).Delete(&SMSLog{})
	if sms.Error != nil {
		return fmt.Errorf("can't prune sms history: %w", sms.Error)
	}

	if pruned := calls.RowsAffected + sms.RowsAffected; pruned > 0 {
		d.log.Info("old history pruned",
			logger.Any("rows", pruned),
			logger.String("cutoff", cutoff.Format("2006-01-02")))
	}
	return nil
}

// Close closes the store.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM handle for the repositories.
func (d *DB) GetDB() *gorm.DB {
	return d.db
}
