package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/ingest"
	"github.com/papercast-ai/papercast/internal/orchestrator"
	"github.com/papercast-ai/papercast/internal/style"
	"github.com/papercast-ai/papercast/internal/svcctx"
	"github.com/papercast-ai/papercast/internal/types"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	// Papers
	mux.HandleFunc("POST /papers", s.handleIngestPaper)
	mux.HandleFunc("GET /papers", s.handleListPapers)

	// Jobs
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /jobs/{id}/events", s.handleJobEvents)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)

	// Episodes
	mux.HandleFunc("GET /episodes", s.handleListEpisodes)
	mux.HandleFunc("GET /episodes/{id}", s.handleGetEpisode)
	mux.HandleFunc("GET /episodes/{id}/audio", s.handleEpisodeAudio)

	// Styles
	mux.HandleFunc("GET /styles", s.handleListStyles)
}

// ErrorResponse is the error payload for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.Running() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// IngestPaperRequest is the request body for POST /papers.
type IngestPaperRequest struct {
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
	SourceRef string `json:"source_ref,omitempty"`
}

// IngestPaperResponse is the response for POST /papers.
type IngestPaperResponse struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
}

func (s *Server) handleIngestPaper(w http.ResponseWriter, r *http.Request) {
	var req IngestPaperRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 32<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	paper, err := ingest.FromText(req.Title, req.Body, req.SourceRef)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svcctx.PapersFrom(r.Context()).Add(paper)
	writeJSON(w, http.StatusCreated, IngestPaperResponse{PaperID: paper.PaperID, Title: paper.Title})
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers := svcctx.PapersFrom(r.Context()).List()
	out := make([]IngestPaperResponse, 0, len(papers))
	for _, p := range papers {
		out = append(out, IngestPaperResponse{PaperID: p.PaperID, Title: p.Title})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateJobRequest is the request body for POST /jobs.
type CreateJobRequest struct {
	PaperID         string  `json:"paper_id"`
	StyleID         string  `json:"style_id,omitempty"`
	TargetDurationS float64 `json:"target_duration_s,omitempty"`
	FastMode        bool    `json:"fast_mode,omitempty"`
	MaxCostUSD      float64 `json:"max_cost_usd,omitempty"`
}

// CreateJobResponse is the response for POST /jobs.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaperID == "" {
		writeError(w, http.StatusBadRequest, "paper_id is required")
		return
	}

	paper, err := svcctx.PapersFrom(r.Context()).Get(req.PaperID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	job, err := svcctx.OrchestratorFrom(r.Context()).StartJob(r.Context(), paper, orchestrator.JobOptions{
		StyleID:         req.StyleID,
		TargetDurationS: req.TargetDurationS,
		FastMode:        req.FastMode,
		Limits:          budget.Limits{MaxCost: req.MaxCostUSD},
	})
	if err != nil {
		var je *types.JobError
		if errors.As(err, &je) && je.Kind == types.ErrKindBadInput {
			writeError(w, http.StatusBadRequest, je.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateJobResponse{JobID: job.JobID})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, svcctx.JobsFrom(r.Context()).List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := svcctx.JobsFrom(r.Context()).Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.OrchestratorFrom(r.Context()).Cancel(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleJobEvents streams job transitions as server-sent events. The
// recorded events are replayed first so late subscribers are not blind.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	jobs := svcctx.JobsFrom(r.Context())

	job, err := jobs.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	// Replay recorded events, then follow live ones.
	for _, ev := range jobs.Events(jobID) {
		writeEvent(ev)
	}
	if job.State.Terminal() {
		return
	}

	ch, cancel := jobs.Subscribe(jobID)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(ev)
			if ev.To.Terminal() {
				return
			}
		}
	}
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, svcctx.AssemblerFrom(r.Context()).List())
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := svcctx.AssemblerFrom(r.Context()).Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (s *Server) handleEpisodeAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := svcctx.AssemblerFrom(r.Context()).Audio(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// StyleResponse describes one catalog style.
type StyleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListStyles(w http.ResponseWriter, r *http.Request) {
	ids := style.IDs()
	out := make([]StyleResponse, 0, len(ids))
	for _, id := range ids {
		st, err := style.Lookup(id)
		if err != nil {
			continue
		}
		out = append(out, StyleResponse{ID: st.ID, Name: st.Name, Description: st.Description})
	}
	writeJSON(w, http.StatusOK, out)
}
