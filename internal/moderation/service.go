package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propdesk/propdesk/internal/models"
)

var (
	ErrReviewNotFound    = errors.New("review not found")
	ErrInvalidStatus     = errors.New("invalid review status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Store is the review persistence used by moderators
type Store interface {
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviews(ctx context.Context, filters models.ReviewFilters) ([]*models.Review, error)
	UpdateReviewStatus(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error)
}

// Publisher receives moderation events
type Publisher interface {
	Publish(event models.ReviewEvent)
}

// Service implements the moderation queue
type Service struct {
	store     Store
	publisher Publisher
}

// NewService creates a moderation service; publisher may be nil
func NewService(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// List returns reviews matching filters, newest first
func (s *Service) List(ctx context.Context, filters models.ReviewFilters) ([]*models.Review, error) {
	if filters.Status != "" && !filters.Status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, filters.Status)
	}
	if filters.Limit <= 0 {
		filters.Limit = DefaultLimit
	}
	if filters.Limit > MaxLimit {
		filters.Limit = MaxLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	reviews, err := s.store.ListReviews(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}
	return reviews, nil
}

// Get returns a single review. Ids that are not UUIDs cannot exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrReviewNotFound
	}

	rv, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	if rv == nil {
		return nil, ErrReviewNotFound
	}
	return rv, nil
}

// SetStatus moves a pending review to approved or rejected
func (s *Service) SetStatus(ctx context.Context, id string, status models.ReviewStatus) (*models.Review, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	rv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rv.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rv.Status, status)
	}

	updated, err := s.store.UpdateReviewStatus(ctx, id, rv.Status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update review status: %w", err)
	}
	if !updated {
		// another moderator got there first
		return nil, fmt.Errorf("%w: review is no longer %s", ErrInvalidTransition, rv.Status)
	}

	rv.Status = status
	rv.UpdatedAt = time.Now().UTC()

	slog.Info("review moderated", "review_id", id, "company_id", rv.CompanyID, "status", status)

	if s.publisher != nil {
		s.publisher.Publish(models.ReviewEvent{
			Type:         models.EventReviewModerated,
			ReviewID:     rv.ID,
			CompanyID:    rv.CompanyID,
			ReviewNumber: rv.ReviewNumber,
			Status:       status,
			At:           rv.UpdatedAt,
		})
	}

	return rv, nil
}
