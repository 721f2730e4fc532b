// Package gormstorage implements the storage.Backend interface on any GORM
// dialect. Records are queued and written in batches by a background writer.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wayfind/indoornav/internal/model"
	"github.com/wayfind/indoornav/internal/model/convert"
	"github.com/wayfind/indoornav/internal/queue"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/pkg/core"
)

// DefaultFlushInterval is how often queued records are written.
const DefaultFlushInterval = time.Second

// DefaultQueueLimit bounds each record queue while the database is slow.
const DefaultQueueLimit = 100000

// Dependencies holds everything the backend needs.
type Dependencies struct {
	DB *gorm.DB
	// Connect is called by Init when DB is nil.
	Connect       func() (*gorm.DB, error)
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// Backend writes sessions, routes and alignments through GORM.
type Backend struct {
	deps       Dependencies
	logger     *slog.Logger
	routes     *queue.Queue[model.Route]
	alignments *queue.Queue[model.Alignment]

	mu        sync.Mutex
	sessionID string

	flushMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a GORM backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.QueueLimit <= 0 {
		deps.QueueLimit = DefaultQueueLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		deps:       deps,
		logger:     logger.With("component", "storage"),
		routes:     queue.New[model.Route](deps.QueueLimit),
		alignments: queue.New[model.Alignment](deps.QueueLimit),
	}
}

func dialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "pending"
	}
	return db.Dialector.Name()
}

// DB returns the underlying connection, nil before Init when connecting lazily.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init connects if needed, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		if b.deps.Connect == nil {
			return errors.New("no database connection configured")
		}
		db, err := b.deps.Connect()
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		b.deps.DB = db
	}
	b.logger = b.logger.With("dialect", dialectName(b.deps.DB))

	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.logger.Info("Database setup complete")

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer and flushes whatever is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
		if b.deps.DB != nil {
			err = b.Flush()
		}
	})
	return err
}

// StartSession inserts the session row. Records are tagged with its ID.
func (b *Backend) StartSession(s *core.Session) error {
	m, err := convert.CoreToSession(s)
	if err != nil {
		return err
	}
	if err := b.deps.DB.Create(&m).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	b.mu.Lock()
	b.sessionID = m.ID
	b.mu.Unlock()
	b.logger.Info("Session started", "session", m.ID, "site", m.Site)
	return nil
}

// EndSession flushes the queues and stamps the session end time.
func (b *Backend) EndSession() error {
	id := b.currentSession()
	if id == "" {
		return storage.ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}

	end := sql.NullTime{Time: time.Now(), Valid: true}
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", end).Error; err != nil {
		return fmt.Errorf("ending session: %w", err)
	}

	b.mu.Lock()
	b.sessionID = ""
	b.mu.Unlock()
	b.logger.Info("Session ended", "session", id)
	return nil
}

func (b *Backend) currentSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// RecordRoute queues a path update.
func (b *Backend) RecordRoute(r *core.RouteRecord) error {
	id := b.currentSession()
	if id == "" {
		return storage.ErrNoSession
	}
	if dropped := b.routes.Push(convert.CoreToRoute(id, *r)); dropped > 0 {
		return fmt.Errorf("route queue full, dropped %d", dropped)
	}
	return nil
}

// RecordAlignment queues a surface pose change.
func (b *Backend) RecordAlignment(a *core.AlignmentRecord) error {
	id := b.currentSession()
	if id == "" {
		return storage.ErrNoSession
	}
	if dropped := b.alignments.Push(convert.CoreToAlignment(id, *a)); dropped > 0 {
		return fmt.Errorf("alignment queue full, dropped %d", dropped)
	}
	return nil
}

// Pending returns the number of queued, unwritten records.
func (b *Backend) Pending() int {
	return b.routes.Len() + b.alignments.Len()
}

// Flush writes all queued records now.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.alignments, "alignments", b.logger),
		writeQueue(b.deps.DB, b.routes, "routes", b.logger),
	)
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, logger *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	tx := db.Begin()
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		tx.Rollback()
		requeue(q, items, name, logger)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		requeue(q, items, name, logger)
		return fmt.Errorf("committing %s: %w", name, err)
	}

	logger.Debug("Wrote records", "table", name, "count", len(items))
	return nil
}

// requeue returns a failed batch to q and logs what no longer fit.
func requeue[T any](q *queue.Queue[T], items []T, name string, logger *slog.Logger) {
	if dropped := q.Requeue(items); dropped > 0 {
		logger.Warn("Dropped records after failed write", "table", name, "count", dropped)
	}
}

func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.logger.Error("Failed to write queued records", "error", err)
			}
		}
	}
}
