package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/propdesk/propdesk/internal/stats"
)

func (s *Server) handleCompanyStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		respondError(w, http.StatusServiceUnavailable, "stats_unavailable", "statistics are not configured")
		return
	}

	companyID := chi.URLParam(r, "companyId")
	kind := stats.Kind(chi.URLParam(r, "kind"))

	paramName, ok := stats.ParamName(kind)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "unknown statistic: "+string(kind))
		return
	}

	var param *float64
	if raw := r.URL.Query().Get(paramName); raw != "" {
		v, err := stats.ParseParam(kind, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		param = &v
	}

	rows, err := s.deps.Stats.Get(r.Context(), kind, companyID, param)
	if err != nil {
		if errors.Is(err, stats.ErrUnknownStat) {
			respondError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		if errors.Is(err, stats.ErrInvalidParam) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		slog.Error("failed to fetch stats", "kind", kind, "company_id", companyID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to fetch statistics")
		return
	}

	respondJSON(w, http.StatusOK, rows)
}
