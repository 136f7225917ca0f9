package jobstore

import (
	"errors"
	"testing"
	"time"

	"github.com/papercast-ai/papercast/internal/types"
)

func newJob(id string) *types.Job {
	return &types.Job{JobID: id, State: types.StateUploaded, StartedAt: time.Now()}
}

func TestCreateGet(t *testing.T) {
	s := New()

	if err := s.Create(newJob("j1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(newJob("j1")); err == nil {
		t.Error("duplicate create should fail")
	}

	job, err := s.Get("j1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.JobID != "j1" || job.State != types.StateUploaded {
		t.Errorf("job = %+v", job)
	}

	if _, err := s.Get("missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := New()
	_ = s.Create(newJob("j1"))

	a, _ := s.Get("j1")
	a.State = types.StateCompleted // mutate the copy

	b, _ := s.Get("j1")
	if b.State != types.StateUploaded {
		t.Error("Get must return an isolated snapshot")
	}
}

func TestUpdateCAS(t *testing.T) {
	s := New()
	_ = s.Create(newJob("j1"))

	t.Run("applies when expectations match", func(t *testing.T) {
		err := s.Update("j1", types.StateUploaded, 0, func(j *types.Job) {
			j.State = types.StateIndexing
			j.ProgressPct = 10
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		job, _ := s.Get("j1")
		if job.State != types.StateIndexing || job.ProgressPct != 10 {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("rejects stale expectations", func(t *testing.T) {
		err := s.Update("j1", types.StateUploaded, 0, func(j *types.Job) {
			j.State = types.StateFailed
		})
		if err == nil {
			t.Error("stale CAS should fail")
		}
		job, _ := s.Get("j1")
		if job.State != types.StateIndexing {
			t.Error("stale CAS must not mutate")
		}
	})
}

func TestEvents(t *testing.T) {
	s := New()
	_ = s.Create(newJob("j1"))

	s.Publish(Event{JobID: "j1", From: types.StateUploaded, To: types.StateIndexing, ProgressPct: 10})
	s.Publish(Event{JobID: "j1", From: types.StateIndexing, To: types.StatePlanning, ProgressPct: 20})

	events := s.Events("j1")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for i, ev := range events {
		if ev.Seq != i {
			t.Errorf("event %d has seq %d", i, ev.Seq)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d missing timestamp", i)
		}
	}
	if events[0].To != types.StateIndexing || events[1].To != types.StatePlanning {
		t.Error("events out of order")
	}
}

func TestSubscribe(t *testing.T) {
	s := New()
	_ = s.Create(newJob("j1"))

	ch, cancel := s.Subscribe("j1")
	defer cancel()

	s.Publish(Event{JobID: "j1", To: types.StateIndexing})

	select {
	case ev := <-ch:
		if ev.To != types.StateIndexing {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic or block.
	s.Publish(Event{JobID: "j1", To: types.StatePlanning})
}
