package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/atgtools/iorstat/pkg/ior"
	"github.com/atgtools/iorstat/pkg/store"
	"github.com/go-chi/chi/v5"
)

const maxRunsLimit = 1000

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRuns returns stored runs, newest first. Supports the fs, job
// and limit query parameters.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.RunFilter{
		FileSystem: q.Get("fs"),
		JobKey:     q.Get("job"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"invalid limit"})

			return
		}

		filter.Limit = min(limit, maxRunsLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("Failed to list runs")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	if runs == nil {
		runs = []store.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// runDetail is a run with its decoded input summary and results.
type runDetail struct {
	store.Run

	InputSummary *ior.InputSummary `json:"input_summary,omitempty"`
	Results      []store.Result    `json:"results"`
}

// handleGetRun returns one run with its results.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid run id"})

		return
	}

	run, err := s.store.GetRun(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{"run not found"})

			return
		}

		s.log.WithError(err).Error("Failed to get run")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	results, err := s.store.ListResults(r.Context(), run.ID)
	if err != nil {
		s.log.WithError(err).Error("Failed to list results")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	summary, err := run.InputSummary()
	if err != nil {
		s.log.WithError(err).WithField("run_id", run.ID).
			Warn("Stored input summary is unreadable")
	}

	if results == nil {
		results = []store.Result{}
	}

	writeJSON(w, http.StatusOK, runDetail{
		Run:          *run,
		InputSummary: summary,
		Results:      results,
	})
}

// handleListJobs returns mean throughput per job geometry and operation.
func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list jobs")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	if jobs == nil {
		jobs = []store.JobSummary{}
	}

	writeJSON(w, http.StatusOK, jobs)
}
