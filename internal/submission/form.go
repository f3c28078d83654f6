package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks client errors in a submission
var ErrValidation = errors.New("invalid submission")

// Slot identifies an attachment field of the review form
type Slot string

const (
	SlotProof       Slot = "proofFile"
	SlotFundedProof Slot = "fundedProofFile"
	SlotPayoutProof Slot = "payoutProofFile"
	SlotReportProof Slot = "proofFiles"
)

// Folder is the storage sub-folder of the slot
func (s Slot) Folder() string {
	switch s {
	case SlotProof:
		return "proof"
	case SlotFundedProof:
		return "funded-proof"
	case SlotPayoutProof:
		return "payout-proof"
	case SlotReportProof:
		return "report-proof"
	}
	return "other"
}

// Attachment is one uploaded file
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader wraps a multipart file part
func FromFileHeader(fh *multipart.FileHeader) *Attachment {
	if fh == nil {
		return nil
	}
	return &Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Form is a parsed review submission
type Form struct {
	CompanyID         string             `validate:"required,max=64,excludesall=/\\"`
	UserID            string             `validate:"max=128"`
	AccountSize       string             `validate:"max=64"`
	AccountType       string             `validate:"max=64"`
	TradingDuration   string             `validate:"max=64"`
	FundedStatus      string             `validate:"max=64"`
	PayoutStatus      string             `validate:"max=64"`
	ReviewText        string             `validate:"max=10000"`
	Pros              string             `validate:"max=5000"`
	Cons              string             `validate:"max=5000"`
	ReportIssue       bool
	ReportDescription string             `validate:"max=5000"`
	Ratings           map[string]float64 `validate:"dive,keys,required,max=64,endkeys,min=1,max=5"`

	ProofFile       *Attachment
	FundedProofFile *Attachment
	PayoutProofFile *Attachment
	ProofFiles      []*Attachment
}

var validate = validator.New()

// Validate checks field constraints
func (f *Form) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Singular returns the attachment in a single-file slot
func (f *Form) Singular(slot Slot) *Attachment {
	switch slot {
	case SlotProof:
		return f.ProofFile
	case SlotFundedProof:
		return f.FundedProofFile
	case SlotPayoutProof:
		return f.PayoutProofFile
	}
	return nil
}

// ParseForm reads a multipart review submission and validates it
func ParseForm(r *http.Request, maxMemory int64) (*Form, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	values := r.MultipartForm.Value
	files := r.MultipartForm.File

	f := &Form{
		CompanyID:         scalar(values, "companyId"),
		UserID:            scalar(values, "userId"),
		AccountSize:       scalar(values, "accountSize"),
		AccountType:       scalar(values, "accountType"),
		TradingDuration:   scalar(values, "tradingDuration"),
		FundedStatus:      scalar(values, "fundedStatus"),
		PayoutStatus:      scalar(values, "payoutStatus"),
		ReviewText:        scalar(values, "reviewText"),
		Pros:              scalar(values, "pros"),
		Cons:              scalar(values, "cons"),
		ReportIssue:       scalar(values, "reportIssue") == "true",
		ReportDescription: scalar(values, "reportDescription"),
		ProofFile:         FromFileHeader(firstFile(files, string(SlotProof))),
		FundedProofFile:   FromFileHeader(firstFile(files, string(SlotFundedProof))),
		PayoutProofFile:   FromFileHeader(firstFile(files, string(SlotPayoutProof))),
	}

	for _, fh := range files[string(SlotReportProof)] {
		f.ProofFiles = append(f.ProofFiles, FromFileHeader(fh))
	}

	ratings, err := parseRatings(scalar(values, "ratings"))
	if err != nil {
		return nil, err
	}
	f.Ratings = ratings

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// scalar unwraps a form field to its first value
func scalar(values map[string][]string, key string) string {
	v := values[key]
	if len(v) == 0 {
		return ""
	}
	return strings.TrimSpace(v[0])
}

func firstFile(files map[string][]*multipart.FileHeader, key string) *multipart.FileHeader {
	if fhs := files[key]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}

func parseRatings(raw string) (map[string]float64, error) {
	ratings := make(map[string]float64)
	if raw == "" {
		return ratings, nil
	}
	if err := json.Unmarshal([]byte(raw), &ratings); err != nil {
		return nil, fmt.Errorf("%w: ratings must be a JSON object of numbers", ErrValidation)
	}
	return ratings, nil
}
