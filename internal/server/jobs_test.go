package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestScheduleEvictsOldestJob(t *testing.T) {
	kv := NewMemoryKV()
	registry := newJobRegistry(kv, 3, time.Hour, time.Hour, func(gameID string) {})
	t.Cleanup(registry.Close)

	for i := 0; i < 4; i++ {
		registry.Schedule(fmt.Sprintf("g%d", i))
	}

	jobs := registry.ActiveJobs()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 active jobs, got %d", len(jobs))
	}
	if jobs[0].GameID != "g1" || jobs[2].GameID != "g3" {
		t.Fatalf("expected oldest job evicted, got %#v", jobs)
	}
}

func TestCancelGameStopsJob(t *testing.T) {
	kv := NewMemoryKV()
	registry := newJobRegistry(kv, 5, time.Hour, time.Hour, func(gameID string) {})
	t.Cleanup(registry.Close)

	registry.Schedule("g1")
	registry.Schedule("g2")

	if !registry.CancelGame("g1") {
		t.Fatalf("expected cancel to report a stopped job")
	}
	if registry.CancelGame("g1") {
		t.Fatalf("expected second cancel to be a no-op")
	}
	jobs := registry.ActiveJobs()
	if len(jobs) != 1 || jobs[0].GameID != "g2" {
		t.Fatalf("unexpected jobs after cancel %#v", jobs)
	}
}

func TestCancelByJobID(t *testing.T) {
	kv := NewMemoryKV()
	registry := newJobRegistry(kv, 5, time.Hour, time.Hour, func(gameID string) {})
	t.Cleanup(registry.Close)

	jobID := registry.Schedule("g1")
	if !registry.Cancel(jobID) {
		t.Fatalf("expected cancel by job id to succeed")
	}
	if len(registry.ActiveJobs()) != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestJobListIsPersisted(t *testing.T) {
	kv := NewMemoryKV()
	registry := newJobRegistry(kv, 5, time.Hour, time.Hour, func(gameID string) {})
	t.Cleanup(registry.Close)

	registry.Schedule("g1")
	registry.Schedule("g2")

	raw, ok, err := kv.Get(context.Background(), jobListKey)
	if err != nil || !ok {
		t.Fatalf("expected persisted job list, got ok=%v err=%v", ok, err)
	}
	var records []jobRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("decode job list: %v", err)
	}
	if len(records) != 2 || records[0].GameID != "g1" || records[1].GameID != "g2" {
		t.Fatalf("unexpected job list %#v", records)
	}
	for _, record := range records {
		if record.JobID == "" || record.CreatedAt.IsZero() {
			t.Fatalf("incomplete job record %#v", record)
		}
	}
}

func TestScheduledJobTicks(t *testing.T) {
	kv := NewMemoryKV()
	var mu sync.Mutex
	ticked := make(map[string]int)
	fired := make(chan struct{}, 8)
	registry := newJobRegistry(kv, 5, 5*time.Millisecond, time.Hour, func(gameID string) {
		mu.Lock()
		ticked[gameID]++
		mu.Unlock()
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	t.Cleanup(registry.Close)

	registry.Schedule("g1")
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the job to tick")
	}

	registry.CancelGame("g1")
	mu.Lock()
	if ticked["g1"] == 0 {
		mu.Unlock()
		t.Fatalf("expected at least one tick for g1")
	}
	mu.Unlock()
}
