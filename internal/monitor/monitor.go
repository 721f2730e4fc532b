// Package monitor keeps a status file for a running session up to date.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultInterval = time.Second

// Status is one snapshot of a running session.
type Status struct {
	Time          time.Time `json:"time"`
	Session       string    `json:"session"`
	Frame         uint64    `json:"frame"`
	Routes        int       `json:"routes"`
	Destination   string    `json:"destination"`
	Corners       int       `json:"corners"`
	Generation    uint64    `json:"surfaceGeneration"`
	Abandoned     int       `json:"abandonedSurfaces"`
	PendingWrites int       `json:"pendingWrites"`
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger *slog.Logger
	// StatusFile is rewritten with the latest Status on every interval.
	StatusFile string
	Interval   time.Duration
	// Pending reports queued storage writes. Optional; must be safe to call
	// from any goroutine.
	Pending func() int
}

// Service manages status monitoring
type Service struct {
	deps   Dependencies
	logger *slog.Logger

	mu        sync.RWMutex
	status    Status
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	return &Service{
		deps:   deps,
		logger: deps.Logger.With("component", "monitor"),
	}
}

// Update stores the latest snapshot. Called from the host loop.
func (s *Service) Update(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// Status returns the latest snapshot with the current storage backlog.
func (s *Service) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	if s.deps.Pending != nil {
		st.PendingWrites = s.deps.Pending()
	}
	return st
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	f, err := os.Create(s.deps.StatusFile)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating status file: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer f.Close()

		s.logger.Debug("Starting status monitor", "file", s.deps.StatusFile, "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.write(f); err != nil {
					s.logger.Error("Error writing status file", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.write(f); err != nil {
					s.logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop writes a final status and stops the monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Service) write(f *os.File) error {
	data, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
