package offers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/propdesk/propdesk/internal/models"
)

// Source provides the raw firm and challenge rows offers are built from
type Source interface {
	ListListedFirms(ctx context.Context) ([]*models.Firm, error)
	ListChallenges(ctx context.Context) ([]*models.Challenge, error)
}

// Cache stores the last built offer set
type Cache interface {
	Get(ctx context.Context) ([]models.Offer, bool, error)
	Set(ctx context.Context, offers []models.Offer) error
	Ping(ctx context.Context) error
}

// Query describes one listing request
type Query struct {
	Criteria  Criteria
	Sort      SortState
	Favorites []string
}

// LoadObserver is told about every load attempt
type LoadObserver interface {
	ObserveOfferLoad(err error)
}

// Service builds, caches and queries offers
type Service struct {
	source   Source
	cache    Cache
	observer LoadObserver
}

// NewService creates an offer service. cache may be nil.
func NewService(source Source, cache Cache) *Service {
	return &Service{source: source, cache: cache}
}

// SetObserver registers a load observer
func (s *Service) SetObserver(o LoadObserver) {
	s.observer = o
}

// Load fetches firms and challenges and rebuilds the offer set.
// Nothing is cached when either fetch fails.
func (s *Service) Load(ctx context.Context) (offers []models.Offer, err error) {
	if s.observer != nil {
		defer func() { s.observer.ObserveOfferLoad(err) }()
	}

	firms, err := s.source.ListListedFirms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch firms: %w", err)
	}

	challenges, err := s.source.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}

	offers = BuildOffers(firms, challenges)

	if s.cache != nil {
		if err := s.cache.Set(ctx, offers); err != nil {
			slog.Warn("failed to cache offers", "error", err)
		}
	}

	slog.Debug("offers loaded", "firms", len(firms), "challenges", len(challenges), "offers", len(offers))
	return offers, nil
}

// All returns the cached offer set, loading it on a miss
func (s *Service) All(ctx context.Context) ([]models.Offer, error) {
	if s.cache != nil {
		offers, ok, err := s.cache.Get(ctx)
		if err != nil {
			slog.Warn("offer cache read failed", "error", err)
		} else if ok {
			return offers, nil
		}
	}
	return s.Load(ctx)
}

// List returns the filtered and sorted view for q
func (s *Service) List(ctx context.Context, q Query) ([]models.Offer, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	result := Filter(all, q.Criteria)
	if len(q.Favorites) > 0 {
		result = MarkFavorites(result, q.Favorites)
	}
	return Sort(result, q.Sort.Column, q.Sort.Direction), nil
}

// Facets returns the selector values for the current offer set
func (s *Service) Facets(ctx context.Context) (Facets, error) {
	all, err := s.All(ctx)
	if err != nil {
		return Facets{}, err
	}
	return BuildFacets(all), nil
}
