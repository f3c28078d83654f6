package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/internal/moderation"
	"github.com/propdesk/propdesk/internal/submission"
)

type submitReviewResponse struct {
	Success      bool     `json:"success"`
	ReviewID     string   `json:"reviewId"`
	ReviewNumber int      `json:"reviewNumber"`
	Message      string   `json:"message"`
	SkippedFiles []string `json:"skippedFiles,omitempty"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	if s.reviews.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.reviews.MaxBodyBytes)
	}

	form, err := submission.ParseForm(r, s.reviews.MaxUploadMemory)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "submission exceeds the upload limit")
			return
		}
		slog.Warn("rejected review submission", "error", err)
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.deps.Submission.Submit(r.Context(), form)
	if err != nil {
		if errors.Is(err, submission.ErrValidation) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		slog.Error("failed to submit review", "company_id", form.CompanyID, "error", err)
		respondError(w, http.StatusInternalServerError, "submission_failed", "failed to submit review")
		return
	}

	message := "Review submitted successfully"
	if len(result.SkippedFiles) > 0 {
		message = fmt.Sprintf("Review submitted; %d report proof file(s) could not be stored", len(result.SkippedFiles))
	}

	writeJSON(w, http.StatusOK, submitReviewResponse{
		Success:      true,
		ReviewID:     result.Review.ID,
		ReviewNumber: result.Review.ReviewNumber,
		Message:      message,
		SkippedFiles: result.SkippedFiles,
	})
}

// Moderation handlers

type reviewListResponse struct {
	Reviews []*models.Review `json:"reviews"`
	Count   int              `json:"count"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := models.ReviewFilters{
		CompanyID: q.Get("company_id"),
		Status:    models.ReviewStatus(q.Get("status")),
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		filters.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "validation_error", "offset must be a positive integer")
			return
		}
		filters.Offset = n
	}

	reviews, err := s.deps.Moderation.List(r.Context(), filters)
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidStatus) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		slog.Error("failed to list reviews", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list reviews")
		return
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = moderation.DefaultLimit
	}
	if limit > moderation.MaxLimit {
		limit = moderation.MaxLimit
	}

	respondJSON(w, http.StatusOK, reviewListResponse{
		Reviews: reviews,
		Count:   len(reviews),
		Limit:   limit,
		Offset:  filters.Offset,
	})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rv, err := s.deps.Moderation.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, moderation.ErrReviewNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "review not found")
			return
		}
		slog.Error("failed to get review", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get review")
		return
	}

	respondJSON(w, http.StatusOK, rv)
}

func (s *Server) handleSetReviewStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UpdateReviewStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	rv, err := s.deps.Moderation.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, moderation.ErrReviewNotFound):
			respondError(w, http.StatusNotFound, "not_found", "review not found")
		case errors.Is(err, moderation.ErrInvalidTransition):
			respondError(w, http.StatusConflict, "invalid_transition", err.Error())
		default:
			slog.Error("failed to update review status", "error", err, "id", id)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to update review")
		}
		return
	}

	client := ClientFromContext(r.Context())
	if client != nil {
		slog.Info("review status changed", "review_id", id, "status", rv.Status, "client", client.Name)
	}

	respondJSON(w, http.StatusOK, rv)
}
