package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/internal/offers"
)

type offerListResponse struct {
	Offers []models.Offer    `json:"offers"`
	Total  int               `json:"total"`
	Sort   *offers.SortState `json:"sort,omitempty"`
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := offers.Query{
		Criteria: offers.Criteria{
			Search:        strings.TrimSpace(q.Get("search")),
			ChallengeType: q.Get("challengeType"),
			AccountSize:   q.Get("accountSize"),
		},
		Favorites: splitList(q.Get("favorites")),
	}

	if column := q.Get("sort"); column != "" {
		if !offers.IsSortable(column) {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown sort column: "+column)
			return
		}
		query.Sort = offers.SortState{Column: column, Direction: offers.ParseDirection(q.Get("dir"))}
	}

	// select=<column> applies a header click to the current sort
	if column := q.Get("select"); column != "" {
		if !offers.IsSortable(column) {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown sort column: "+column)
			return
		}
		query.Sort = query.Sort.Select(column)
	}

	result, err := s.deps.Offers.List(r.Context(), query)
	if err != nil {
		slog.Error("failed to list offers", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load offers")
		return
	}

	resp := offerListResponse{Offers: result, Total: len(result)}
	if query.Sort.Column != "" {
		resp.Sort = &query.Sort
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOfferFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := s.deps.Offers.Facets(r.Context())
	if err != nil {
		slog.Error("failed to build offer facets", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load offers")
		return
	}

	respondJSON(w, http.StatusOK, facets)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
