package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/internal/objectstore"
)

// Pipeline errors
var (
	ErrNumbering  = errors.New("failed to assign review number")
	ErrAttachment = errors.New("failed to store attachment")
	ErrPersist    = errors.New("failed to save review")
)

// Stage is a step of a submission, used for logging
type Stage string

const (
	StageReceived      Stage = "received"
	StageValidated     Stage = "validated"
	StageNumbered      Stage = "numbered"
	StageFilesUploaded Stage = "files-uploaded"
	StageRowInserted   Stage = "row-inserted"
	StageDone          Stage = "done"
)

// Outcome is the final state of a submission
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialSuccess Outcome = "partial-success"
	OutcomeFailure        Outcome = "failure"
)

// ReviewStore is the persistence the pipeline needs
type ReviewStore interface {
	AllocateReviewNumber(ctx context.Context, companyID string, floor int) (int, error)
	CreateReview(ctx context.Context, rv *models.Review) error
}

// Publisher receives review events
type Publisher interface {
	Publish(event models.ReviewEvent)
}

// Observer records submission outcomes
type Observer interface {
	ObserveSubmission(outcome string, duration time.Duration)
}

// Result describes a stored submission
type Result struct {
	Review       *models.Review
	Outcome      Outcome
	SkippedFiles []string
}

// Pipeline stores review submissions and their attachments.
// Attachments are uploaded before the row is written; on a fatal failure
// every object uploaded so far is deleted so no orphan row or folder remains.
type Pipeline struct {
	reviews   ReviewStore
	store     objectstore.Store
	publisher Publisher
	observer  Observer
	now       func() time.Time
}

// Option configures a pipeline
type Option func(*Pipeline)

// WithPublisher sets the event publisher
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithObserver sets the metrics observer
func WithObserver(o Observer) Option {
	return func(pl *Pipeline) { pl.observer = o }
}

// NewPipeline creates a submission pipeline
func NewPipeline(reviews ReviewStore, store objectstore.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		reviews: reviews,
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var singularSlots = []Slot{SlotProof, SlotFundedProof, SlotPayoutProof}

// Submit runs the whole submission
func (p *Pipeline) Submit(ctx context.Context, form *Form) (res *Result, err error) {
	start := time.Now()
	log := slog.With("company_id", form.CompanyID)
	log.Debug("review submission", "stage", StageReceived)

	defer func() {
		outcome := OutcomeFailure
		if res != nil {
			outcome = res.Outcome
		}
		if p.observer != nil {
			p.observer.ObserveSubmission(string(outcome), time.Since(start))
		}
	}()

	if err := form.Validate(); err != nil {
		return nil, err
	}
	log.Debug("review submission", "stage", StageValidated)

	number, err := p.assignNumber(ctx, form.CompanyID)
	if err != nil {
		log.Error("failed to assign review number", "error", err)
		return nil, err
	}
	log = log.With("review_number", number)
	log.Debug("review submission", "stage", StageNumbered)

	now := p.now()
	rv := &models.Review{
		ID:                uuid.NewString(),
		CompanyID:         form.CompanyID,
		UserID:            form.UserID,
		AccountSize:       form.AccountSize,
		AccountType:       form.AccountType,
		TradingDuration:   form.TradingDuration,
		FundedStatus:      form.FundedStatus,
		PayoutStatus:      form.PayoutStatus,
		ReviewText:        form.ReviewText,
		Pros:              form.Pros,
		Cons:              form.Cons,
		ReportIssue:       form.ReportIssue,
		ReportDescription: form.ReportDescription,
		Ratings:           form.Ratings,
		ReviewNumber:      number,
		Status:            models.ReviewPending,
		ReportProofPaths:  []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if rv.Ratings == nil {
		rv.Ratings = map[string]float64{}
	}

	var uploaded []string

	for _, slot := range singularSlots {
		att := form.Singular(slot)
		if att == nil {
			continue
		}

		objectPath := ObjectPath(form.CompanyID, number, slot, att.Filename)
		if err := p.upload(ctx, objectPath, att); err != nil {
			log.Error("failed to upload attachment", "slot", slot, "file", att.Filename, "error", err)
			p.compensate(ctx, log, uploaded)
			return nil, fmt.Errorf("%w: %s: %v", ErrAttachment, slot, err)
		}
		uploaded = append(uploaded, objectPath)

		stored := objectPath
		switch slot {
		case SlotProof:
			rv.ProofPath = &stored
		case SlotFundedProof:
			rv.FundedProofPath = &stored
		case SlotPayoutProof:
			rv.PayoutProofPath = &stored
		}
	}

	var skipped []string
	names := newNameSet()
	for _, att := range form.ProofFiles {
		if att == nil {
			continue
		}

		objectPath := ObjectPath(form.CompanyID, number, SlotReportProof, names.unique(att.Filename))
		if err := p.upload(ctx, objectPath, att); err != nil {
			log.Warn("skipping report proof", "file", att.Filename, "error", err)
			skipped = append(skipped, att.Filename)
			continue
		}
		uploaded = append(uploaded, objectPath)
		rv.ReportProofPaths = append(rv.ReportProofPaths, objectPath)
	}
	log.Debug("review submission", "stage", StageFilesUploaded, "files", len(uploaded), "skipped", len(skipped))

	if err := p.reviews.CreateReview(ctx, rv); err != nil {
		log.Error("failed to insert review", "error", err)
		p.compensate(ctx, log, uploaded)
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	log.Debug("review submission", "stage", StageRowInserted, "review_id", rv.ID)

	outcome := OutcomeSuccess
	if len(skipped) > 0 {
		outcome = OutcomePartialSuccess
	}

	if p.publisher != nil {
		p.publisher.Publish(models.ReviewEvent{
			Type:         models.EventReviewSubmitted,
			ReviewID:     rv.ID,
			CompanyID:    rv.CompanyID,
			ReviewNumber: rv.ReviewNumber,
			Status:       rv.Status,
			At:           now,
		})
	}

	log.Info("review submitted", "stage", StageDone, "review_id", rv.ID, "outcome", outcome)
	return &Result{Review: rv, Outcome: outcome, SkippedFiles: skipped}, nil
}

// assignNumber seeds the atomic counter with the folder-derived number
func (p *Pipeline) assignNumber(ctx context.Context, companyID string) (int, error) {
	folders, err := p.store.ListFolders(ctx, CompanyFolder(companyID))
	if err != nil {
		return 0, fmt.Errorf("%w: listing folders: %v", ErrNumbering, err)
	}

	number, err := p.reviews.AllocateReviewNumber(ctx, companyID, NextFromFolders(folders))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNumbering, err)
	}
	return number, nil
}

func (p *Pipeline) upload(ctx context.Context, objectPath string, att *Attachment) error {
	if att.Open == nil {
		return fmt.Errorf("attachment %s has no content", att.Filename)
	}

	rc, err := att.Open()
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer rc.Close()

	return p.store.Upload(ctx, objectPath, att.ContentType, rc)
}

// compensate removes objects uploaded by a failed submission.
// It runs detached from the request context so a cancelled request still cleans up.
func (p *Pipeline) compensate(ctx context.Context, log *slog.Logger, paths []string) {
	if len(paths) == 0 {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := p.store.Delete(cleanupCtx, paths...); err != nil {
		log.Error("failed to remove attachments of failed submission", "paths", paths, "error", err)
		return
	}
	log.Info("removed attachments of failed submission", "count", len(paths))
}

// nameSet hands out distinct file names within one slot
type nameSet struct {
	used map[string]bool
	next map[string]int
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]bool), next: make(map[string]int)}
}

// unique returns name, or "<n>-name" with the lowest n >= 2 that no earlier
// file in the slot was given, including names the uploader chose.
func (s *nameSet) unique(name string) string {
	base := safeFilename(name)
	if !s.used[base] {
		s.used[base] = true
		return base
	}
	for n := max(s.next[base], 2); ; n++ {
		candidate := strconv.Itoa(n) + "-" + base
		if !s.used[candidate] {
			s.used[candidate] = true
			s.next[base] = n + 1
			return candidate
		}
	}
}
