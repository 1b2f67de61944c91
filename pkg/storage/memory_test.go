package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hirelens/hirelens/pkg/predictor"
)

func testReport(dataset string) predictor.Report {
	return predictor.Report{
		ID:          "report-" + dataset,
		Dataset:     dataset,
		GeneratedAt: time.Now().UTC(),
		Predictions: []predictor.Prediction{
			{Role: "Data Scientist", CurrentDemand: 150, Demand: 158, GrowthRate: 5.33, Confidence: 0.5},
		},
	}
}

func TestMemoryStore_PutAndGetLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, testReport("jobs")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := s.GetLatest(ctx, "jobs")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected report to be found")
	}
	if got.Dataset != "jobs" {
		t.Errorf("Dataset = %q, want %q", got.Dataset, "jobs")
	}
	if len(got.Predictions) != 1 {
		t.Errorf("len(Predictions) = %d, want 1", len(got.Predictions))
	}
}

func TestMemoryStore_Put_EmptyDataset(t *testing.T) {
	s := NewMemoryStore()

	err := s.Put(context.Background(), predictor.Report{})
	if err == nil {
		t.Fatal("expected error for empty dataset name, got nil")
	}
}

func TestMemoryStore_Put_ReplacesExisting(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := testReport("jobs")
	first.ID = "first"
	second := testReport("jobs")
	second.ID = "second"

	if err := s.Put(ctx, first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := s.GetLatest(ctx, "jobs")
	if err != nil || !found {
		t.Fatalf("GetLatest = (found %v, err %v), want found", found, err)
	}
	if got.ID != "second" {
		t.Errorf("ID = %q, want %q (latest wins)", got.ID, "second")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStore_GetLatest_NotFound(t *testing.T) {
	s := NewMemoryStore()

	got, found, err := s.GetLatest(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if found {
		t.Error("expected report not to be found")
	}
	if got.ID != "" {
		t.Error("expected zero-value report")
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, testReport("jobs")); err == nil {
		t.Error("Put with cancelled context error = nil, want error")
	}
	if _, _, err := s.GetLatest(ctx, "jobs"); err == nil {
		t.Error("GetLatest with cancelled context error = nil, want error")
	}
}

func TestMemoryStore_TTL_Expiration(t *testing.T) {
	s := NewMemoryStoreWithTTL(50*time.Millisecond, 20*time.Millisecond)
	defer s.Stop()

	ctx := context.Background()
	if err := s.Put(ctx, testReport("jobs")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, found, _ := s.GetLatest(ctx, "jobs"); !found {
		t.Fatal("expected report to be found immediately after Put")
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, found, _ := s.GetLatest(ctx, "jobs"); !found {
			return
		}
		select {
		case <-deadline:
			t.Fatal("report was not cleaned up after TTL")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestMemoryStoreWithTTL_PanicsOnNonPositiveTTL(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive TTL")
		}
	}()
	NewMemoryStoreWithTTL(0, time.Second)
}

func TestMemoryStore_Stop_Idempotent(t *testing.T) {
	s := NewMemoryStoreWithTTL(time.Minute, time.Minute)
	s.Stop()
	s.Stop()

	// Stop on a TTL-less store is a no-op.
	NewMemoryStore().Stop()
}

func TestMemoryStore_Concurrency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				name := fmt.Sprintf("dataset-%d-%d", id, j)
				if err := s.Put(ctx, testReport(name)); err != nil {
					t.Errorf("Put failed for %s: %v", name, err)
				}
				if _, _, err := s.GetLatest(ctx, name); err != nil {
					t.Errorf("GetLatest failed for %s: %v", name, err)
				}
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 100 {
		t.Errorf("Len() = %d, want 100", s.Len())
	}
}
