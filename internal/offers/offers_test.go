package offers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdesk/propdesk/internal/models"
)

func f64(v float64) *float64 { return &v }

func sampleOffers() []models.Offer {
	return []models.Offer{
		{ID: "c1", FirmName: "Apex Funding", AccountSize: "50K", AccountType: "2 Step", Steps: models.StepsTwo, Price: 150, Rating: 4.5},
		{ID: "c2", FirmName: "Blue Guardian", AccountSize: "100K", AccountType: "1 Step", Steps: models.StepsOne, Price: 99, Rating: 4.1},
		{ID: "c3", FirmName: "Crest Capital", AccountSize: "50K", AccountType: "Instant Funding", Steps: models.StepsInstant, Price: 320, Rating: 3.9},
		{ID: "c4", FirmName: "apex trader", AccountSize: "200K", AccountType: "2 Step", Steps: models.StepsTwo, Price: 540, Rating: 4.8},
	}
}

func ids(offers []models.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.ID
	}
	return out
}

func TestBuildOffers(t *testing.T) {
	firms := []*models.Firm{
		{ID: "f1", Name: "Apex", Rating: 4.5, ReviewCount: 12, Status: models.FirmStatusListed},
		{ID: "f2", Name: "Hidden", Status: "draft"},
	}
	challenges := []*models.Challenge{
		{ID: "c1", PropFirmID: "f1", AccountSize: "50K", Price: 200, DiscountedPrice: f64(150), ProfitTargetPhase1: f64(8), ProfitTargetPhase2: f64(5), ProfitSplit: "up to 90%"},
		{ID: "c2", PropFirmID: "f1", AccountSize: "100K", Price: 300, DiscountedPrice: f64(0), AccountType: models.AccountTypeInstantFunding, ProfitSplit: "80%"},
		{ID: "c3", PropFirmID: "f2", AccountSize: "10K", Price: 50},
		{ID: "c4", PropFirmID: "missing", Price: 10},
	}

	offers := BuildOffers(firms, challenges)
	require.Len(t, offers, 2)

	assert.Equal(t, "Apex", offers[0].FirmName)
	assert.Equal(t, 150.0, offers[0].Price)
	assert.Equal(t, 200.0, offers[0].OriginalPrice)
	assert.Equal(t, models.StepsTwo, offers[0].Steps)
	assert.Equal(t, 90.0, offers[0].ProfitSplitValue)
	assert.Equal(t, 12, offers[0].ReviewCount)

	assert.Equal(t, 300.0, offers[1].Price, "zero discount falls back to the original price")
	assert.Equal(t, models.StepsInstant, offers[1].Steps)
	assert.Equal(t, 80.0, offers[1].ProfitSplitValue)
}

func TestStepsForPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		challenge models.Challenge
		want      string
	}{
		{"phase three wins", models.Challenge{ProfitTargetPhase2: f64(5), ProfitTargetPhase3: f64(5), AccountType: models.AccountTypeInstantFunding}, models.StepsThree},
		{"phase two", models.Challenge{ProfitTargetPhase1: f64(8), ProfitTargetPhase2: f64(5)}, models.StepsTwo},
		{"phase targets beat instant type", models.Challenge{ProfitTargetPhase2: f64(5), AccountType: models.AccountTypeInstantFunding}, models.StepsTwo},
		{"instant funding", models.Challenge{AccountType: models.AccountTypeInstantFunding}, models.StepsInstant},
		{"single phase", models.Challenge{ProfitTargetPhase1: f64(10)}, models.StepsOne},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StepsFor(&tt.challenge))
		})
	}
}

func TestParseProfitSplit(t *testing.T) {
	assert.Equal(t, 90.0, ParseProfitSplit("up to 90%"))
	assert.Equal(t, 85.5, ParseProfitSplit("85.5%"))
	assert.Equal(t, 0.0, ParseProfitSplit("negotiable"))
}

func TestFilterEmptyCriteriaIsIdentity(t *testing.T) {
	in := sampleOffers()
	out := Filter(in, Criteria{})
	assert.Equal(t, in, out)

	out[0].FirmName = "changed"
	assert.Equal(t, "Apex Funding", in[0].FirmName, "filter must not alias the input")
}

func TestFilterAccountSizeExact(t *testing.T) {
	out := Filter(sampleOffers(), Criteria{AccountSize: "50K"})
	require.Len(t, out, 2)
	for _, o := range out {
		assert.Equal(t, "50K", o.AccountSize)
	}

	assert.Empty(t, Filter(sampleOffers(), Criteria{AccountSize: "50"}))
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{"c1", "c4"}, ids(Filter(sampleOffers(), Criteria{Search: "APEX"})))
	assert.Equal(t, []string{"c2"}, ids(Filter(sampleOffers(), Criteria{Search: "100k"})))
	assert.Equal(t, []string{"c3"}, ids(Filter(sampleOffers(), Criteria{Search: "instant"})))
}

func TestFilterIsConjunctive(t *testing.T) {
	out := Filter(sampleOffers(), Criteria{Search: "apex", ChallengeType: "2 Step", AccountSize: "200K"})
	assert.Equal(t, []string{"c4"}, ids(out))
}

func TestSortNumericColumns(t *testing.T) {
	assert.Equal(t, []string{"c2", "c1", "c3", "c4"}, ids(Sort(sampleOffers(), ColumnPrice, Ascending)))
	assert.Equal(t, []string{"c4", "c1", "c2", "c3"}, ids(Sort(sampleOffers(), ColumnRating, Descending)))
}

func TestSortTextColumnComparesAsGiven(t *testing.T) {
	// upper-case letters sort before lower-case ones
	out := Sort(sampleOffers(), ColumnFirm, Ascending)
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, ids(out))
}

func TestSortUnknownColumnKeepsOrder(t *testing.T) {
	assert.Equal(t, ids(sampleOffers()), ids(Sort(sampleOffers(), "bogus", Descending)))
}

func TestSortIsStableForTies(t *testing.T) {
	in := []models.Offer{
		{ID: "a", Price: 100},
		{ID: "b", Price: 50},
		{ID: "c", Price: 100},
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids(Sort(in, ColumnPrice, Ascending)))
	assert.Equal(t, []string{"a", "c", "b"}, ids(Sort(in, ColumnPrice, Descending)))
}

func TestDoubleToggleRestoresOrder(t *testing.T) {
	state := SortState{}.Select(ColumnPrice)
	require.Equal(t, Ascending, state.Direction)
	first := Sort(sampleOffers(), state.Column, state.Direction)

	state = state.Select(ColumnPrice)
	assert.Equal(t, Descending, state.Direction)
	state = state.Select(ColumnPrice)
	assert.Equal(t, Ascending, state.Direction)

	assert.Equal(t, ids(first), ids(Sort(first, state.Column, state.Direction)))
}

func TestSelectNewColumnResetsDirection(t *testing.T) {
	state := SortState{Column: ColumnPrice, Direction: Descending}.Select(ColumnRating)
	assert.Equal(t, SortState{Column: ColumnRating, Direction: Ascending}, state)
}

func TestBuildFacets(t *testing.T) {
	f := BuildFacets(sampleOffers())
	assert.Equal(t, []string{"2 Step", "1 Step", "Instant Funding"}, f.ChallengeTypes)
	assert.Equal(t, []string{"50K", "100K", "200K"}, f.AccountSizes)
}

type fakeSource struct {
	firms      []*models.Firm
	challenges []*models.Challenge
	err        error
	calls      int
}

func (s *fakeSource) ListListedFirms(ctx context.Context) ([]*models.Firm, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.firms, nil
}

func (s *fakeSource) ListChallenges(ctx context.Context) ([]*models.Challenge, error) {
	return s.challenges, nil
}

type memoryCache struct {
	offers []models.Offer
	ok     bool
}

func (c *memoryCache) Get(ctx context.Context) ([]models.Offer, bool, error) {
	return c.offers, c.ok, nil
}

func (c *memoryCache) Set(ctx context.Context, offers []models.Offer) error {
	c.offers, c.ok = offers, true
	return nil
}

func (c *memoryCache) Ping(ctx context.Context) error { return nil }

func TestServiceListUsesCache(t *testing.T) {
	src := &fakeSource{
		firms: []*models.Firm{{ID: "f1", Name: "Apex", Status: models.FirmStatusListed}},
		challenges: []*models.Challenge{
			{ID: "c1", PropFirmID: "f1", AccountSize: "50K", Price: 300},
			{ID: "c2", PropFirmID: "f1", AccountSize: "100K", Price: 100},
		},
	}
	cache := &memoryCache{}
	svc := NewService(src, cache)
	ctx := context.Background()

	out, err := svc.List(ctx, Query{Sort: SortState{Column: ColumnPrice, Direction: Ascending}, Favorites: []string{"c1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, ids(out))
	assert.True(t, out[1].IsFavorite)
	assert.False(t, out[0].IsFavorite)

	_, err = svc.List(ctx, Query{Criteria: Criteria{AccountSize: "50K"}})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second listing should be served from cache")
	assert.False(t, cache.offers[0].IsFavorite, "favorites must not leak into the cache")
}

func TestServiceLoadFailureLeavesNothing(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	cache := &memoryCache{}
	svc := NewService(src, cache)

	out, err := svc.List(context.Background(), Query{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.False(t, cache.ok)
}
