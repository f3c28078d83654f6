package offers

import (
	"sort"
	"strings"

	"github.com/propdesk/propdesk/internal/models"
)

// Direction is a sort direction
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection maps user input to a direction, defaulting to ascending
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Descending)) {
		return Descending
	}
	return Ascending
}

// Sortable columns
const (
	ColumnFirm            = "firmName"
	ColumnRating          = "rating"
	ColumnReviewCount     = "reviewCount"
	ColumnPrice           = "price"
	ColumnOriginalPrice   = "originalPrice"
	ColumnAccountSize     = "accountSize"
	ColumnAccountType     = "accountType"
	ColumnSteps           = "steps"
	ColumnMaxDailyLoss    = "maxDailyLoss"
	ColumnMaxDrawdown     = "maxDrawdown"
	ColumnProfitSplit     = "profitSplit"
	ColumnPayoutFrequency = "payoutFrequency"
)

// sortKey is either numeric or textual; text keys compare lexically.
type sortKey struct {
	num     float64
	text    string
	numeric bool
}

var columns = map[string]func(o *models.Offer) sortKey{
	ColumnFirm:            func(o *models.Offer) sortKey { return sortKey{text: o.FirmName} },
	ColumnRating:          func(o *models.Offer) sortKey { return sortKey{num: o.Rating, numeric: true} },
	ColumnReviewCount:     func(o *models.Offer) sortKey { return sortKey{num: float64(o.ReviewCount), numeric: true} },
	ColumnPrice:           func(o *models.Offer) sortKey { return sortKey{num: o.Price, numeric: true} },
	ColumnOriginalPrice:   func(o *models.Offer) sortKey { return sortKey{num: o.OriginalPrice, numeric: true} },
	ColumnAccountSize:     func(o *models.Offer) sortKey { return sortKey{text: o.AccountSize} },
	ColumnAccountType:     func(o *models.Offer) sortKey { return sortKey{text: o.AccountType} },
	ColumnSteps:           func(o *models.Offer) sortKey { return sortKey{text: o.Steps} },
	ColumnMaxDailyLoss:    func(o *models.Offer) sortKey { return sortKey{num: o.MaxDailyLoss, numeric: true} },
	ColumnMaxDrawdown:     func(o *models.Offer) sortKey { return sortKey{num: o.MaxDrawdown, numeric: true} },
	ColumnProfitSplit:     func(o *models.Offer) sortKey { return sortKey{text: o.ProfitSplit} },
	ColumnPayoutFrequency: func(o *models.Offer) sortKey { return sortKey{text: o.PayoutFrequency} },
}

// IsSortable reports whether column names a known sort column
func IsSortable(column string) bool {
	_, ok := columns[column]
	return ok
}

// Sort returns a stably sorted copy of offers. An empty or unknown column keeps the input order.
func Sort(offers []models.Offer, column string, dir Direction) []models.Offer {
	result := make([]models.Offer, len(offers))
	copy(result, offers)

	key, ok := columns[column]
	if !ok {
		return result
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := key(&result[i]), key(&result[j])
		if dir == Descending {
			a, b = b, a
		}
		if a.numeric {
			return a.num < b.num
		}
		return a.text < b.text
	})
	return result
}

// SortState tracks the active column and direction of a listing
type SortState struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// Select applies a column choice: the active column flips direction, a new column starts ascending.
func (s SortState) Select(column string) SortState {
	if column == s.Column {
		if s.Direction == Ascending {
			return SortState{Column: column, Direction: Descending}
		}
		return SortState{Column: column, Direction: Ascending}
	}
	return SortState{Column: column, Direction: Ascending}
}
