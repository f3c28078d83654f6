package models

// FirmStatusListed marks a firm that is shown on the site
const FirmStatusListed = "listed"

// Firm is a proprietary-trading company listed for evaluation
type Firm struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	LogoURL     string  `json:"logoUrl,omitempty" yaml:"logo_url"`
	BrandColor  string  `json:"brandColor,omitempty" yaml:"brand_color"`
	Rating      float64 `json:"rating" yaml:"rating"`
	ReviewCount int     `json:"reviewCount" yaml:"review_count"`
	Status      string  `json:"status" yaml:"status"`
}

// IsListed reports whether the firm should appear in offer listings
func (f *Firm) IsListed() bool {
	return f != nil && f.Status == FirmStatusListed
}

// AccountTypeInstantFunding is the account type of challenges with no evaluation phase
const AccountTypeInstantFunding = "Instant Funding"

// Challenge is a funded-account product sold by a firm
type Challenge struct {
	ID                 string   `json:"id" yaml:"id"`
	PropFirmID         string   `json:"propFirmId" yaml:"-"`
	AccountSize        string   `json:"accountSize" yaml:"account_size"`
	AccountType        string   `json:"accountType" yaml:"account_type"`
	Price              float64  `json:"price" yaml:"price"`
	DiscountedPrice    *float64 `json:"discountedPrice,omitempty" yaml:"discounted_price"`
	ProfitTargetPhase1 *float64 `json:"profitTargetPhase1,omitempty" yaml:"profit_target_phase1"`
	ProfitTargetPhase2 *float64 `json:"profitTargetPhase2,omitempty" yaml:"profit_target_phase2"`
	ProfitTargetPhase3 *float64 `json:"profitTargetPhase3,omitempty" yaml:"profit_target_phase3"`
	MaxDailyLoss       float64  `json:"maxDailyLoss" yaml:"max_daily_loss"`
	MaxDrawdown        float64  `json:"maxDrawdown" yaml:"max_drawdown"`
	ProfitSplit        string   `json:"profitSplit" yaml:"profit_split"`
	PayoutFrequency    string   `json:"payoutFrequency" yaml:"payout_frequency"`
}
