package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/counsel/internal/archive"
	"github.com/MikeSquared-Agency/counsel/internal/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunHistory is satisfied by *store.Store.
type RunHistory interface {
	RecentRuns(ctx context.Context, userID string, limit int) ([]store.RunSummary, error)
}

// RunArchive is satisfied by *archive.Archive.
type RunArchive interface {
	Get(ctx context.Context, runID string) (*archive.Document, error)
}

// listRuns returns the caller's latest runs. Authenticated callers only
// ever see their own; otherwise user_id selects the user.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if c, ok := ClaimsFrom(r.Context()); ok {
		userID = c.UserID
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.history.RecentRuns(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("failed to list runs", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// getRun returns the archived package of one run.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	doc, err := s.archive.Get(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to load run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if c, ok := ClaimsFrom(r.Context()); ok && doc.UserID != c.UserID {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, doc.Package)
}
