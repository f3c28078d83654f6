package storage

import (
	"context"
	"errors"

	"github.com/propdesk/propdesk/internal/models"
)

// ErrReviewNumberTaken is returned when (company_id, review_number) already exists
var ErrReviewNumberTaken = errors.New("review number already taken")

// Repository defines persistence for firms, reviews and API clients
type Repository interface {
	// Catalog
	ListListedFirms(ctx context.Context) ([]*models.Firm, error)
	ListChallenges(ctx context.Context) ([]*models.Challenge, error)

	// Reviews
	AllocateReviewNumber(ctx context.Context, companyID string, floor int) (int, error)
	CreateReview(ctx context.Context, rv *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviews(ctx context.Context, filters models.ReviewFilters) ([]*models.Review, error)
	UpdateReviewStatus(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
