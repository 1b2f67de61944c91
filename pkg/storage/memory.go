package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hirelens/hirelens/pkg/predictor"
)

// MemoryStore implements an in-memory report store. It is safe for
// concurrent use by multiple goroutines.
//
// The store keeps the latest report per dataset in a map. When a TTL is
// configured, a background goroutine removes stale reports; call Stop to
// shut it down. For multi-instance deployments use RedisStore instead.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]entry

	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

type entry struct {
	report   predictor.Report
	storedAt time.Time
}

// NewMemoryStore creates an in-memory report store with no TTL. Reports are
// kept until overwritten.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]entry)}
}

// NewMemoryStoreWithTTL creates an in-memory store whose cleanup goroutine
// removes reports older than ttl. cleanupInterval defaults to one minute
// when non-positive. Stop must be called to release the goroutine.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("storage: TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		reports:       make(map[string]entry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}
	go s.runCleanup()
	return s
}

// Stop shuts down the cleanup goroutine. Safe to call multiple times or on a
// store without TTL.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
		<-s.cleanupDone
		s.cleanupTicker.Stop()
	})
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for name, e := range s.reports {
		if now.Sub(e.storedAt) > s.ttl {
			delete(s.reports, name)
		}
	}
}

// Put stores a report, replacing any existing report for its dataset.
func (s *MemoryStore) Put(ctx context.Context, report predictor.Report) error {
	if report.Dataset == "" {
		return errors.New("storage: report dataset name cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Dataset] = entry{report: report, storedAt: time.Now()}
	return nil
}

// GetLatest retrieves the most recent report for a dataset. found is false
// when no report exists.
func (s *MemoryStore) GetLatest(ctx context.Context, dataset string) (predictor.Report, bool, error) {
	select {
	case <-ctx.Done():
		return predictor.Report{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.reports[dataset]
	return e.report, found, nil
}

// Len returns the number of stored reports. Primarily useful for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
