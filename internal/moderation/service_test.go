package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdesk/propdesk/internal/events"
	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/internal/storage"
)

const reviewID = "4f5c0a9e-8d0e-4c1b-9a57-2f3e6d7c8b91"

func seed(t *testing.T, repo *storage.MemoryRepository, id, company string, number int, at time.Time) {
	t.Helper()
	require.NoError(t, repo.CreateReview(context.Background(), &models.Review{
		ID:           id,
		CompanyID:    company,
		ReviewNumber: number,
		Status:       models.ReviewPending,
		CreatedAt:    at,
		UpdatedAt:    at,
	}))
}

func TestSetStatusApprovesPendingReview(t *testing.T) {
	repo := storage.NewMemoryRepository(nil)
	seed(t, repo, reviewID, "9", 1, time.Now())

	hub := events.NewHub(4)
	sub := hub.Subscribe()
	defer sub.Close()

	svc := NewService(repo, hub)
	rv, err := svc.SetStatus(context.Background(), reviewID, models.ReviewApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, rv.Status)

	stored, err := svc.Get(context.Background(), reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, stored.Status)

	event := <-sub.Events()
	assert.Equal(t, models.EventReviewModerated, event.Type)
	assert.Equal(t, models.ReviewApproved, event.Status)
}

func TestSetStatusRejectsSecondDecision(t *testing.T) {
	repo := storage.NewMemoryRepository(nil)
	seed(t, repo, reviewID, "9", 1, time.Now())
	svc := NewService(repo, nil)

	_, err := svc.SetStatus(context.Background(), reviewID, models.ReviewRejected)
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), reviewID, models.ReviewApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.SetStatus(context.Background(), reviewID, models.ReviewStatus("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetStatus(context.Background(), "missing", models.ReviewApproved)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestGetUnknownOrMalformedID(t *testing.T) {
	repo := storage.NewMemoryRepository(nil)
	seed(t, repo, reviewID, "9", 1, time.Now())
	svc := NewService(repo, nil)

	for _, id := range []string{"not-a-uuid", "", "e3b0c442-98fc-4c14-9afb-f4c8996fb924"} {
		_, err := svc.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrReviewNotFound, id)
	}

	_, err := svc.SetStatus(context.Background(), "not-a-uuid", models.ReviewApproved)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestListAppliesFiltersAndLimits(t *testing.T) {
	repo := storage.NewMemoryRepository(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "a", "9", 1, base)
	seed(t, repo, "b", "9", 2, base.Add(time.Hour))
	seed(t, repo, "c", "4", 1, base.Add(2*time.Hour))
	svc := NewService(repo, nil)

	all, err := svc.List(context.Background(), models.ReviewFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	company, err := svc.List(context.Background(), models.ReviewFilters{CompanyID: "9", Limit: 1})
	require.NoError(t, err)
	require.Len(t, company, 1)
	assert.Equal(t, "b", company[0].ID)

	none, err := svc.List(context.Background(), models.ReviewFilters{Status: models.ReviewApproved})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.List(context.Background(), models.ReviewFilters{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
