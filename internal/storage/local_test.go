package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalAdapter(t *testing.T) {
	ctx := context.Background()
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter() error = %v", err)
	}

	t.Run("put and get round trip", func(t *testing.T) {
		if err := a.Put(ctx, "jobs/j1/audio.mp3", strings.NewReader("payload")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		rc, err := a.Get(ctx, "jobs/j1/audio.mp3")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "payload" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := a.Exists(ctx, "jobs/j1/audio.mp3")
		if err != nil || !ok {
			t.Errorf("Exists() = %v, %v", ok, err)
		}
		ok, err = a.Exists(ctx, "jobs/j1/missing.mp3")
		if err != nil || ok {
			t.Errorf("Exists() = %v, %v for missing file", ok, err)
		}
	})

	t.Run("list by prefix", func(t *testing.T) {
		_ = a.Put(ctx, "jobs/j2/a.mp3", strings.NewReader("x"))
		_ = a.Put(ctx, "episodes/e1.json", strings.NewReader("{}"))

		keys, err := a.List(ctx, "jobs/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		for _, k := range keys {
			if !strings.HasPrefix(k, "jobs/") {
				t.Errorf("prefix leaked: %s", k)
			}
		}
		if len(keys) != 2 {
			t.Errorf("got %d keys, want 2", len(keys))
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := a.Delete(ctx, "jobs/j2/a.mp3"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := a.Delete(ctx, "jobs/j2/a.mp3"); err != nil {
			t.Errorf("second Delete() error = %v", err)
		}
	})

	t.Run("get missing fails", func(t *testing.T) {
		if _, err := a.Get(ctx, "nope"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
