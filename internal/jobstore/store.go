// Package jobstore is the in-process job registry and progress feed. The
// orchestrator owns job mutation; every other component reads snapshots or
// subscribes to the per-job event stream.
package jobstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/papercast-ai/papercast/internal/types"
)

// Event is one job state transition. Events for a job are totally ordered.
type Event struct {
	JobID       string      `json:"job_id"`
	From        types.State `json:"from,omitempty"`
	To          types.State `json:"to"`
	ProgressPct float64     `json:"progress_pct"`
	Message     string      `json:"message,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Seq         int         `json:"seq"`
}

// subscriber is one open event channel for a job.
type subscriber struct {
	ch chan Event
}

// Store is an in-memory job registry keyed by job ID.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*types.Job
	events map[string][]Event
	subs   map[string][]*subscriber
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs:   make(map[string]*types.Job),
		events: make(map[string][]Event),
		subs:   make(map[string][]*subscriber),
	}
}

// Create registers a new job. Fails if the ID already exists.
func (s *Store) Create(job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return fmt.Errorf("job %s already exists", job.JobID)
	}
	s.jobs[job.JobID] = job.Clone()
	return nil
}

// Get returns a snapshot of a job.
func (s *Store) Get(jobID string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, types.ErrNotFound)
	}
	return job.Clone(), nil
}

// List returns snapshots of all jobs.
func (s *Store) List() []*types.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out
}

// Update applies mutate to the stored job if and only if its current
// (state, progress_pct) still match the expected pair. This is the
// compare-and-swap that keeps concurrent readers from publishing stale
// transitions.
func (s *Store) Update(jobID string, expectState types.State, expectProgress float64, mutate func(*types.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, types.ErrNotFound)
	}
	if job.State != expectState || job.ProgressPct != expectProgress {
		return fmt.Errorf("job %s changed concurrently: have (%s, %.0f), want (%s, %.0f)",
			jobID, job.State, job.ProgressPct, expectState, expectProgress)
	}
	mutate(job)
	return nil
}

// Put unconditionally replaces the stored snapshot. Reserved for the
// orchestrator, which owns the job.
func (s *Store) Put(job *types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job.Clone()
}

// Publish appends a transition event and fans it out to subscribers.
// Events are append-only; a slow subscriber that misses events can re-read
// the job snapshot.
func (s *Store) Publish(ev Event) {
	s.mu.Lock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Seq = len(s.events[ev.JobID])
	s.events[ev.JobID] = append(s.events[ev.JobID], ev)
	subs := append([]*subscriber(nil), s.subs[ev.JobID]...)
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is not draining; drop rather than block the
			// orchestrator. The snapshot remains authoritative.
		}
	}
}

// Events returns the recorded events for a job, in order.
func (s *Store) Events(jobID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events[jobID]...)
}

// Subscribe returns a channel of future events for a job and a cancel
// function. The channel is closed on cancel.
func (s *Store) Subscribe(jobID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 64)}

	s.mu.Lock()
	s.subs[jobID] = append(s.subs[jobID], sub)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			list := s.subs[jobID]
			for i, cur := range list {
				if cur == sub {
					s.subs[jobID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}
