package offers

import (
	"regexp"
	"strconv"

	"github.com/propdesk/propdesk/internal/models"
)

var splitNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// BuildOffers joins challenges with their listed firm.
// Challenges whose firm is unknown or not listed are skipped.
func BuildOffers(firms []*models.Firm, challenges []*models.Challenge) []models.Offer {
	byID := make(map[string]*models.Firm, len(firms))
	for _, f := range firms {
		if f.IsListed() {
			byID[f.ID] = f
		}
	}

	offers := make([]models.Offer, 0, len(challenges))
	for _, c := range challenges {
		firm, ok := byID[c.PropFirmID]
		if !ok {
			continue
		}
		offers = append(offers, buildOffer(firm, c))
	}
	return offers
}

func buildOffer(f *models.Firm, c *models.Challenge) models.Offer {
	price := c.Price
	if c.DiscountedPrice != nil && *c.DiscountedPrice > 0 {
		price = *c.DiscountedPrice
	}

	return models.Offer{
		ID:                 c.ID,
		FirmID:             f.ID,
		FirmName:           f.Name,
		FirmLogo:           f.LogoURL,
		FirmColor:          f.BrandColor,
		Rating:             f.Rating,
		ReviewCount:        f.ReviewCount,
		Price:              price,
		OriginalPrice:      c.Price,
		AccountSize:        c.AccountSize,
		AccountType:        c.AccountType,
		Steps:              StepsFor(c),
		ProfitTargetPhase1: c.ProfitTargetPhase1,
		ProfitTargetPhase2: c.ProfitTargetPhase2,
		ProfitTargetPhase3: c.ProfitTargetPhase3,
		MaxDailyLoss:       c.MaxDailyLoss,
		MaxDrawdown:        c.MaxDrawdown,
		ProfitSplit:        c.ProfitSplit,
		ProfitSplitValue:   ParseProfitSplit(c.ProfitSplit),
		PayoutFrequency:    c.PayoutFrequency,
	}
}

// MarkFavorites returns a copy of offers with IsFavorite set for the given challenge ids
func MarkFavorites(offers []models.Offer, ids []string) []models.Offer {
	fav := make(map[string]bool, len(ids))
	for _, id := range ids {
		fav[id] = true
	}

	result := make([]models.Offer, len(offers))
	for i, o := range offers {
		o.IsFavorite = fav[o.ID]
		result[i] = o
	}
	return result
}

// StepsFor derives the step descriptor of a challenge
func StepsFor(c *models.Challenge) string {
	switch {
	case c.ProfitTargetPhase3 != nil:
		return models.StepsThree
	case c.ProfitTargetPhase2 != nil:
		return models.StepsTwo
	case c.AccountType == models.AccountTypeInstantFunding:
		return models.StepsInstant
	default:
		return models.StepsOne
	}
}

// ParseProfitSplit returns the first number in a split label such as "up to 90%".
// Labels without a number yield 0.
func ParseProfitSplit(split string) float64 {
	m := splitNumber.FindString(split)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
