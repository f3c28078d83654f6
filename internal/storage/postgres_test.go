package storage

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/migrations"
)

// newTestPostgres connects to PROPDESK_TEST_DATABASE_DSN and applies the
// embedded migrations. Tests using it are skipped without the variable.
func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("PROPDESK_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("PROPDESK_TEST_DATABASE_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, MigrateFromDSN(ctx, dsn, migrations.FS))

	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn, MaxOpenConns: 20})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// testCompany returns a company id no other run uses and removes its rows afterwards
func testCompany(t *testing.T, repo *PostgresRepository) string {
	t.Helper()

	company := "test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = repo.Pool().Exec(ctx, `DELETE FROM reviews WHERE company_id = $1`, company)
		_, _ = repo.Pool().Exec(ctx, `DELETE FROM review_counters WHERE company_id = $1`, company)
	})
	return company
}

func TestPostgresAllocateReviewNumber(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	company := testCompany(t, repo)

	n, err := repo.AllocateReviewNumber(ctx, company, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.AllocateReviewNumber(ctx, company, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a folder seen in storage lifts the counter
	n, err = repo.AllocateReviewNumber(ctx, company, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// a stale floor never moves it back
	n, err = repo.AllocateReviewNumber(ctx, company, 3)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}

func TestPostgresAllocateReviewNumberSeedsFromExistingRows(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	company := testCompany(t, repo)

	now := time.Now().UTC()
	require.NoError(t, repo.CreateReview(ctx, &models.Review{
		ID:           uuid.NewString(),
		CompanyID:    company,
		ReviewNumber: 5,
		Status:       models.ReviewPending,
		Ratings:      map[string]float64{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	n, err := repo.AllocateReviewNumber(ctx, company, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestPostgresAllocateReviewNumberConcurrent(t *testing.T) {
	repo := newTestPostgres(t)
	company := testCompany(t, repo)

	const n = 20
	numbers := make([]int, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			numbers[i], errs[i] = repo.AllocateReviewNumber(context.Background(), company, 1)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Ints(numbers)
	for i, got := range numbers {
		assert.Equal(t, i+1, got)
	}
}

func TestPostgresCreateReviewRejectsDuplicateNumber(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()
	company := testCompany(t, repo)

	now := time.Now().UTC()
	newReview := func() *models.Review {
		return &models.Review{
			ID:           uuid.NewString(),
			CompanyID:    company,
			ReviewNumber: 1,
			Status:       models.ReviewPending,
			Ratings:      map[string]float64{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	require.NoError(t, repo.CreateReview(ctx, newReview()))
	assert.ErrorIs(t, repo.CreateReview(ctx, newReview()), ErrReviewNumberTaken)
}
