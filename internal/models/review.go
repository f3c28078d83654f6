package models

import (
	"time"
)

// ReviewStatus represents the moderation state of a review
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// IsValid reports whether s is a known status
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether a review in status s may move to next.
// Reviews leave "pending" exactly once.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	return s == ReviewPending && (next == ReviewApproved || next == ReviewRejected)
}

// Review is a user-submitted evaluation of a firm awaiting moderation
type Review struct {
	ID                string             `json:"id"`
	CompanyID         string             `json:"company_id"`
	UserID            string             `json:"user_id,omitempty"`
	AccountSize       string             `json:"account_size,omitempty"`
	AccountType       string             `json:"account_type,omitempty"`
	TradingDuration   string             `json:"trading_duration,omitempty"`
	FundedStatus      string             `json:"funded_status,omitempty"`
	PayoutStatus      string             `json:"payout_status,omitempty"`
	ReviewText        string             `json:"review_text,omitempty"`
	Pros              string             `json:"pros,omitempty"`
	Cons              string             `json:"cons,omitempty"`
	ReportIssue       bool               `json:"report_issue"`
	ReportDescription string             `json:"report_description,omitempty"`
	Ratings           map[string]float64 `json:"ratings"`
	ReviewNumber      int                `json:"review_number"`
	Status            ReviewStatus       `json:"status"`
	ProofPath         *string            `json:"proof_path"`
	FundedProofPath   *string            `json:"funded_proof_path"`
	PayoutProofPath   *string            `json:"payout_proof_path"`
	ReportProofPaths  []string           `json:"report_proof_paths"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ReviewFilters narrows review listings
type ReviewFilters struct {
	CompanyID string
	Status    ReviewStatus
	Limit     int
	Offset    int
}

// ReviewEvent is published when a review enters or leaves the moderation queue
type ReviewEvent struct {
	Type         string       `json:"type"`
	ReviewID     string       `json:"review_id"`
	CompanyID    string       `json:"company_id"`
	ReviewNumber int          `json:"review_number"`
	Status       ReviewStatus `json:"status"`
	At           time.Time    `json:"at"`
}

// Review event types
const (
	EventReviewSubmitted = "review.submitted"
	EventReviewModerated = "review.moderated"
)

// UpdateReviewStatusRequest is the body of a moderation decision
type UpdateReviewStatusRequest struct {
	Status ReviewStatus `json:"status"`
}
