package offers

import (
	"strings"

	"github.com/propdesk/propdesk/internal/models"
)

// Criteria holds the active filters. Zero values are no-ops.
type Criteria struct {
	Search        string `json:"search,omitempty"`
	ChallengeType string `json:"challengeType,omitempty"`
	AccountSize   string `json:"accountSize,omitempty"`
}

// Filter returns the offers matching every active criterion.
// The input slice is never modified.
func Filter(offers []models.Offer, c Criteria) []models.Offer {
	search := strings.ToLower(strings.TrimSpace(c.Search))

	result := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if search != "" && !matchesSearch(o, search) {
			continue
		}
		if c.ChallengeType != "" && o.AccountType != c.ChallengeType {
			continue
		}
		if c.AccountSize != "" && o.AccountSize != c.AccountSize {
			continue
		}
		result = append(result, o)
	}
	return result
}

func matchesSearch(o models.Offer, term string) bool {
	return strings.Contains(strings.ToLower(o.FirmName), term) ||
		strings.Contains(strings.ToLower(o.AccountSize), term) ||
		strings.Contains(strings.ToLower(o.Steps), term)
}

// Facets lists the distinct values available to the selector filters
type Facets struct {
	ChallengeTypes []string `json:"challengeTypes"`
	AccountSizes   []string `json:"accountSizes"`
}

// BuildFacets collects distinct account types and sizes in first-seen order
func BuildFacets(offers []models.Offer) Facets {
	f := Facets{ChallengeTypes: []string{}, AccountSizes: []string{}}
	seenType := make(map[string]bool)
	seenSize := make(map[string]bool)

	for _, o := range offers {
		if o.AccountType != "" && !seenType[o.AccountType] {
			seenType[o.AccountType] = true
			f.ChallengeTypes = append(f.ChallengeTypes, o.AccountType)
		}
		if o.AccountSize != "" && !seenSize[o.AccountSize] {
			seenSize[o.AccountSize] = true
			f.AccountSizes = append(f.AccountSizes, o.AccountSize)
		}
	}
	return f
}
