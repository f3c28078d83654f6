package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/propdesk/propdesk/internal/models"
)

// MemoryRepository keeps reviews and clients in process memory.
// Catalog reads are delegated to an optional source so the YAML catalog can back it.
type MemoryRepository struct {
	mu       sync.Mutex
	catalog  CatalogSource
	reviews  map[string]*models.Review
	counters map[string]int
	clients  map[string]*models.ApiClient
}

// CatalogSource supplies firms and challenges
type CatalogSource interface {
	ListListedFirms(ctx context.Context) ([]*models.Firm, error)
	ListChallenges(ctx context.Context) ([]*models.Challenge, error)
}

// NewMemoryRepository creates an empty repository; catalog may be nil
func NewMemoryRepository(catalog CatalogSource) *MemoryRepository {
	return &MemoryRepository{
		catalog:  catalog,
		reviews:  make(map[string]*models.Review),
		counters: make(map[string]int),
		clients:  make(map[string]*models.ApiClient),
	}
}

// AddClient registers an API client
func (m *MemoryRepository) AddClient(c *models.ApiClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ApiKey] = c
}

func (m *MemoryRepository) ListListedFirms(ctx context.Context) ([]*models.Firm, error) {
	if m.catalog == nil {
		return nil, nil
	}
	return m.catalog.ListListedFirms(ctx)
}

func (m *MemoryRepository) ListChallenges(ctx context.Context) ([]*models.Challenge, error) {
	if m.catalog == nil {
		return nil, nil
	}
	return m.catalog.ListChallenges(ctx)
}

// AllocateReviewNumber mirrors the counter upsert of the Postgres repository
func (m *MemoryRepository) AllocateReviewNumber(ctx context.Context, companyID string, floor int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := floor
	if next < 1 {
		next = 1
	}
	if last, ok := m.counters[companyID]; ok && last+1 > next {
		next = last + 1
	}
	for _, rv := range m.reviews {
		if rv.CompanyID == companyID && rv.ReviewNumber+1 > next {
			next = rv.ReviewNumber + 1
		}
	}

	m.counters[companyID] = next
	return next, nil
}

func (m *MemoryRepository) CreateReview(ctx context.Context, rv *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reviews[rv.ID]; exists {
		return fmt.Errorf("review already exists: %s", rv.ID)
	}
	for _, other := range m.reviews {
		if other.CompanyID == rv.CompanyID && other.ReviewNumber == rv.ReviewNumber {
			return fmt.Errorf("%w: company %s number %d", ErrReviewNumberTaken, rv.CompanyID, rv.ReviewNumber)
		}
	}

	stored := *rv
	m.reviews[rv.ID] = &stored
	return nil
}

func (m *MemoryRepository) GetReview(ctx context.Context, id string) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rv, ok := m.reviews[id]
	if !ok {
		return nil, nil
	}
	out := *rv
	return &out, nil
}

func (m *MemoryRepository) ListReviews(ctx context.Context, filters models.ReviewFilters) ([]*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.Review
	for _, rv := range m.reviews {
		if filters.CompanyID != "" && rv.CompanyID != filters.CompanyID {
			continue
		}
		if filters.Status != "" && rv.Status != filters.Status {
			continue
		}
		out := *rv
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ReviewNumber > result[j].ReviewNumber
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return nil, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

func (m *MemoryRepository) UpdateReviewStatus(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rv, ok := m.reviews[id]
	if !ok || rv.Status != from {
		return false, nil
	}
	rv.Status = to
	rv.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[apiKey], nil
}

func (m *MemoryRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[apiKey]; ok {
		now := time.Now().UTC()
		c.LastUsedAt = &now
	}
	return nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error { return nil }

func (m *MemoryRepository) Close() error { return nil }
