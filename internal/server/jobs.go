// Package server exposes the pipelines over HTTP for a frontend: submit a
// research question, poll job progress, download artifacts. Job state is
// in-memory; restarting the server loses it. Swap the store for a DB later
// without changing endpoints.
package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job tracks one generation run.
type Job struct {
	ID        string            `json:"job_id"`
	Status    string            `json:"status"`
	Stage     string            `json:"stage"`
	Progress  int               `json:"progress"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Error     string            `json:"error,omitempty"`
	RQ        string            `json:"rq"`
	Topic     string            `json:"topic"`
	Summary   string            `json:"summary,omitempty"`
	Artifacts map[string]string `json:"artifacts"`

	// Root holds the job's working directory on disk.
	Root string `json:"-"`
}

// jobStore is the in-memory job registry.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*Job)}
}

func (s *jobStore) create(rq, topic, root string) *Job {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusQueued,
		Stage:     StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		RQ:        rq,
		Topic:     topic,
		Artifacts: make(map[string]string),
		Root:      root,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// get returns a copy so callers never see concurrent mutation.
func (s *jobStore) get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	snapshot := *job
	snapshot.Artifacts = make(map[string]string, len(job.Artifacts))
	for k, v := range job.Artifacts {
		snapshot.Artifacts[k] = v
	}
	return snapshot, true
}

func (s *jobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now().UTC()
	}
}

func (s *jobStore) setProgress(id, stage string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.update(id, func(j *Job) {
		j.Stage = stage
		j.Progress = pct
	})
}

func (s *jobStore) delete(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
		return *job, true
	}
	return Job{}, false
}
