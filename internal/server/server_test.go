package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/papercast-ai/papercast/internal/config"
	"github.com/papercast-ai/papercast/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	// The default config selects mock providers and local storage; point
	// the artifact store at a scratch dir.
	viper.Set("storage.path", t.TempDir())
	t.Cleanup(func() { viper.Set("storage.path", "data") })

	cfgMgr, err := config.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(cfgMgr, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestAPIRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		var health HealthResponse
		if code := getJSON(t, ts.URL+"/health", &health); code != http.StatusOK {
			t.Fatalf("health status = %d", code)
		}
		if health.Status != "ok" {
			t.Errorf("health = %+v", health)
		}
	})

	var paperResp IngestPaperResponse
	t.Run("ingest paper", func(t *testing.T) {
		body := "A Study of Things\n\n" + strings.Repeat("This paper studies many interesting things in depth. ", 50)
		code := postJSON(t, ts.URL+"/papers", IngestPaperRequest{Body: body}, &paperResp)
		if code != http.StatusCreated {
			t.Fatalf("ingest status = %d", code)
		}
		if paperResp.PaperID == "" || paperResp.Title != "A Study of Things" {
			t.Errorf("resp = %+v", paperResp)
		}
	})

	t.Run("rejects empty paper", func(t *testing.T) {
		code := postJSON(t, ts.URL+"/papers", IngestPaperRequest{Body: "tiny"}, nil)
		if code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})

	var jobResp CreateJobResponse
	t.Run("create job", func(t *testing.T) {
		code := postJSON(t, ts.URL+"/jobs", CreateJobRequest{
			PaperID: paperResp.PaperID,
			StyleID: "npr_calm",
		}, &jobResp)
		if code != http.StatusCreated {
			t.Fatalf("create job status = %d", code)
		}
		if jobResp.JobID == "" {
			t.Error("no job id")
		}
	})

	t.Run("unknown style rejected", func(t *testing.T) {
		code := postJSON(t, ts.URL+"/jobs", CreateJobRequest{
			PaperID: paperResp.PaperID,
			StyleID: "yodeling",
		}, nil)
		if code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})

	var job types.Job
	t.Run("job runs to completion", func(t *testing.T) {
		deadline := time.Now().Add(30 * time.Second)
		for time.Now().Before(deadline) {
			code := getJSON(t, fmt.Sprintf("%s/jobs/%s", ts.URL, jobResp.JobID), &job)
			if code != http.StatusOK {
				t.Fatalf("get job status = %d", code)
			}
			if job.State.Terminal() {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if job.State != types.StateCompleted {
			t.Fatalf("job state = %s, error = %+v", job.State, job.Error)
		}
	})

	t.Run("episode metadata and audio", func(t *testing.T) {
		var ep types.Episode
		if code := getJSON(t, fmt.Sprintf("%s/episodes/%s", ts.URL, job.EpisodeID), &ep); code != http.StatusOK {
			t.Fatalf("get episode status = %d", code)
		}
		if len(ep.Segments) == 0 || ep.AudioRef == "" {
			t.Errorf("episode = %+v", ep)
		}

		resp, err := http.Get(fmt.Sprintf("%s/episodes/%s/audio", ts.URL, job.EpisodeID))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("audio status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
			t.Errorf("content type = %s", ct)
		}
	})

	t.Run("styles listed", func(t *testing.T) {
		var styles []StyleResponse
		if code := getJSON(t, ts.URL+"/styles", &styles); code != http.StatusOK {
			t.Fatalf("styles status = %d", code)
		}
		if len(styles) != 9 {
			t.Errorf("got %d styles, want 9", len(styles))
		}
	})

	t.Run("unknown job 404s", func(t *testing.T) {
		if code := getJSON(t, ts.URL+"/jobs/nope", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})
}
