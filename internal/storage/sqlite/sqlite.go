// Package sqlitestorage keeps route history in an in-memory SQLite database
// and periodically dumps it to disk with VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/database"
	gormstorage "github.com/wayfind/indoornav/internal/storage/gorm"
)

// Backend wraps the GORM backend with the disk dump loop.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       config.SQLiteConfig
	logger    *slog.Logger
	stopChan  chan struct{}
	done      chan struct{}
	started   bool
	closeOnce sync.Once
}

// New creates a SQLite backend on the shared in-memory database.
func New(cfg config.SQLiteConfig, logger *slog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	return NewWithDB(db, cfg, logger), nil
}

// NewWithDB creates a SQLite backend on an existing connection.
func NewWithDB(db *gorm.DB, cfg config.SQLiteConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: logger,
		}),
		db:       db,
		cfg:      cfg,
		logger:   logger.With("component", "storage", "dialect", "sqlite"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.started = true

	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}
	return nil
}

// Close stops the dump loop, flushes, and writes a final dump.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if !b.started {
			return
		}
		close(b.stopChan)
		<-b.done
		err = b.Backend.Close()
		if err == nil && b.cfg.Path != "" {
			err = b.Dump()
		}
	})
	return err
}

// Dump writes the current database to the configured path.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.Path); err != nil {
		return err
	}
	b.logger.Debug("Dumped to disk", "path", b.cfg.Path, "duration", time.Since(start))
	return nil
}

// dumpLoop periodically flushes and dumps the in-memory database to disk.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.logger.Error("Error flushing before dump", "error", err)
			}
			if err := b.Dump(); err != nil {
				b.logger.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
