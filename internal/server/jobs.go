package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const jobListKey = "active_job_list"

type jobRecord struct {
	JobID     string    `json:"jobId"`
	GameID    string    `json:"gameId"`
	CreatedAt time.Time `json:"createdAt"`
}

// jobRegistry keeps a bounded FIFO set of recurring per-game tick
// schedules. Scheduling past the capacity cancels the oldest job
// first, so total background load stays capped no matter how many
// games are created. Each job runs its ticks from a single goroutine,
// which serializes ticks within a game.
type jobRegistry struct {
	mu     sync.Mutex
	kv     KeyValue
	ttl    time.Duration
	max    int
	period time.Duration
	run    func(gameID string)
	jobs   []*tickJob
}

type tickJob struct {
	record jobRecord
	ticker *time.Ticker
	done   chan struct{}
}

func newJobRegistry(kv KeyValue, max int, period, ttl time.Duration, run func(gameID string)) *jobRegistry {
	return &jobRegistry{
		kv:     kv,
		ttl:    ttl,
		max:    max,
		period: period,
		run:    run,
	}
}

func (r *jobRegistry) Schedule(gameID string) string {
	r.mu.Lock()
	for len(r.jobs) >= r.max {
		oldest := r.jobs[0]
		r.jobs = r.jobs[1:]
		stopTickJob(oldest)
		log.Printf("evicted oldest job job_id=%s game_id=%s", oldest.record.JobID, oldest.record.GameID)
	}
	job := &tickJob{
		record: jobRecord{
			JobID:     uuid.NewString(),
			GameID:    gameID,
			CreatedAt: time.Now().UTC(),
		},
		ticker: time.NewTicker(r.period),
		done:   make(chan struct{}),
	}
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()

	go r.runJob(job)
	r.persistJobList()
	log.Printf("scheduled job job_id=%s game_id=%s period=%s", job.record.JobID, gameID, r.period)
	return job.record.JobID
}

func (r *jobRegistry) runJob(job *tickJob) {
	for {
		select {
		case <-job.done:
			return
		case <-job.ticker.C:
			r.run(job.record.GameID)
		}
	}
}

func (r *jobRegistry) Cancel(jobID string) bool {
	return r.cancel(func(job *tickJob) bool {
		return job.record.JobID == jobID
	})
}

func (r *jobRegistry) CancelGame(gameID string) bool {
	return r.cancel(func(job *tickJob) bool {
		return job.record.GameID == gameID
	})
}

func (r *jobRegistry) cancel(match func(*tickJob) bool) bool {
	r.mu.Lock()
	cancelled := false
	kept := r.jobs[:0]
	for _, job := range r.jobs {
		if match(job) {
			stopTickJob(job)
			cancelled = true
			continue
		}
		kept = append(kept, job)
	}
	r.jobs = kept
	r.mu.Unlock()
	if cancelled {
		r.persistJobList()
	}
	return cancelled
}

func (r *jobRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		stopTickJob(job)
	}
	r.jobs = nil
}

func (r *jobRegistry) ActiveJobs() []jobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]jobRecord, 0, len(r.jobs))
	for _, job := range r.jobs {
		records = append(records, job.record)
	}
	return records
}

// persistJobList mirrors the registry into the key-value store so a
// restarted process can observe stale schedules.
func (r *jobRegistry) persistJobList() {
	data, err := json.Marshal(r.ActiveJobs())
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.kv.Set(ctx, jobListKey, string(data), r.ttl); err != nil {
		log.Printf("job list persist failed error=%v", err)
	}
}

func stopTickJob(job *tickJob) {
	job.ticker.Stop()
	close(job.done)
}
