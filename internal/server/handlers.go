package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/lferraz/leadscout/internal/pipeline"
	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/types"
)

// handleStartRun launches a new discovery run. Only one run can be active at
// a time; a second start returns 409.
func (s *Server) handleStartRun(w http.ResponseWriter, _ *http.Request) {
	// The run loop must outlive this request, so it runs on the server's
	// lifecycle context rather than the request context.
	run, err := s.runs.Start(s.runCtx)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, run)
}

// handleListRuns returns all runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns the live snapshot for the active run, or the persisted
// record for a finished one.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.runs.Status(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleStopRun requests a cooperative stop. The in-flight query finishes
// before the run reaches its terminal state, so the response reports the
// stopping status rather than the final one.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}

	if err := s.runs.Stop(r.Context(), id); err != nil {
		if errors.Is(err, pipeline.ErrRunNotActive) {
			// Distinguish an unknown run from one that already finished.
			if _, getErr := s.store.GetRun(r.Context(), id); errors.Is(getErr, store.ErrNotFound) {
				s.errorResponse(w, http.StatusNotFound, "run not found")
				return
			}
		}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"run_id": id.String(),
		"status": string(types.StatusStopping),
	})
}

// handleListQueries returns the executed query trail for a run.
func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}

	queries, err := s.store.ListQueries(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"queries": queries})
}

// handleTriggerEnrich starts an enrichment pass unless one is running. Either
// way the response carries the current progress.
func (s *Server) handleTriggerEnrich(w http.ResponseWriter, r *http.Request) {
	progress, started, err := s.enrich.Trigger(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	s.jsonResponse(w, status, map[string]any{"started": started, "progress": progress})
}

// handleEnrichStatus returns enrichment progress.
func (s *Server) handleEnrichStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.enrich.Progress(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

// handleTriggerScore starts a scoring pass unless one is running.
func (s *Server) handleTriggerScore(w http.ResponseWriter, r *http.Request) {
	progress, started, err := s.scoring.Trigger(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	s.jsonResponse(w, status, map[string]any{"started": started, "progress": progress})
}

// handleScoreStatus returns scoring progress.
func (s *Server) handleScoreStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := s.scoring.Progress(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

// handleListCandidates returns candidates matching the query filters:
// min_hits, min_score, enriched=true, coords=true, limit.
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	filter, err := candidateFilterFromQuery(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	candidates, err := s.store.ListCandidates(r.Context(), filter)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"count":      len(candidates),
		"candidates": candidates,
	})
}

func candidateFilterFromQuery(r *http.Request) (store.CandidateFilter, error) {
	var filter store.CandidateFilter
	q := r.URL.Query()

	if raw := q.Get("min_hits"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid min_hits")
		}
		filter.MinHits = v
	}
	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid min_score")
		}
		filter.MinScore = &v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = v
	}
	filter.OnlyEnriched = q.Get("enriched") == "true"
	filter.RequireCoords = q.Get("coords") == "true"
	return filter, nil
}

// handleStats returns an aggregate snapshot across runs, the candidate
// ledger, and both background phases.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	candidates, err := s.store.CandidateCount(ctx)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	enrichProgress, err := s.enrich.Progress(ctx)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	scoreProgress, err := s.scoring.Progress(ctx)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	var totals types.RunCounters
	for _, run := range runs {
		totals.QueriesIssued += run.Counters.QueriesIssued
		totals.PagesFetched += run.Counters.PagesFetched
		totals.ResultsSeen += run.Counters.ResultsSeen
		totals.CandidatesFound += run.Counters.CandidatesFound
		totals.DuplicatesFound += run.Counters.DuplicatesFound
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":          len(runs),
		"active_run_id": nilIfZero(s.runs.ActiveRunID()),
		"totals":        totals,
		"candidates":    candidates,
		"enrichment":    enrichProgress,
		"scoring":       scoreProgress,
	})
}

func nilIfZero(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}
