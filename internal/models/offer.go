package models

// Offer is a challenge flattened together with its firm's display attributes.
// Offers are rebuilt on every load and never persisted.
type Offer struct {
	ID                 string   `json:"id"`
	FirmID             string   `json:"firmId"`
	FirmName           string   `json:"firmName"`
	FirmLogo           string   `json:"firmLogo,omitempty"`
	FirmColor          string   `json:"firmColor,omitempty"`
	Rating             float64  `json:"rating"`
	ReviewCount        int      `json:"reviewCount"`
	Price              float64  `json:"price"`
	OriginalPrice      float64  `json:"originalPrice"`
	AccountSize        string   `json:"accountSize"`
	AccountType        string   `json:"accountType"`
	Steps              string   `json:"steps"`
	ProfitTargetPhase1 *float64 `json:"profitTargetPhase1,omitempty"`
	ProfitTargetPhase2 *float64 `json:"profitTargetPhase2,omitempty"`
	ProfitTargetPhase3 *float64 `json:"profitTargetPhase3,omitempty"`
	MaxDailyLoss       float64  `json:"maxDailyLoss"`
	MaxDrawdown        float64  `json:"maxDrawdown"`
	ProfitSplit        string   `json:"profitSplit"`
	ProfitSplitValue   float64  `json:"profitSplitValue"`
	PayoutFrequency    string   `json:"payoutFrequency"`
	IsFavorite         bool     `json:"isFavorite"`
}

// Step descriptors
const (
	StepsOne     = "1 Step"
	StepsTwo     = "2 Steps"
	StepsThree   = "3 Steps"
	StepsInstant = "Instant"
)
