package medicalhistory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

// Verdict is what a save does to the approval state.
type Verdict int

const (
	// VerdictDraft saves answers and keeps an existing Approved/Declined.
	VerdictDraft Verdict = iota
	VerdictApprove
	VerdictDecline
	// VerdictAdminComplete marks an admin-entered record reviewed without
	// touching the approval.
	VerdictAdminComplete
)

// SaveInput is one submission of the questionnaire.
type SaveInput struct {
	DonorID     int64
	Answers     Patch
	Verdict     Verdict
	Interviewer string
}

// SaveResult describes what a save did.
type SaveResult struct {
	Record  *Record
	Created bool
	// Revised is set when an existing record from an earlier intake cycle was
	// updated. Downstream records then have to be redone.
	Revised bool
	// Patch is the change that was written.
	Patch Patch
}

type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "medical_history").Logger(),
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Get(ctx context.Context, donorID int64) (*Record, error) {
	return s.repo.Get(ctx, donorID)
}

// Save applies in to the donor's medical history, updating the existing record
// or creating one. needs_review is always false when the stored approval ends
// up Approved or Declined.
func (s *Service) Save(ctx context.Context, in SaveInput) (*SaveResult, error) {
	existing, err := s.repo.Get(ctx, in.DonorID)
	if err != nil {
		return nil, err
	}
	stored := ApprovalPending
	if existing != nil {
		stored = existing.MedicalApproval
	}

	now := s.now()
	p := make(Patch, len(in.Answers)+5)
	for k, v := range in.Answers {
		p[k] = v
	}
	if in.Interviewer != "" {
		p["interviewer"] = in.Interviewer
	}

	switch in.Verdict {
	case VerdictApprove:
		p["medical_approval"] = ApprovalApproved
		p["needs_review"] = false
	case VerdictDecline:
		p["medical_approval"] = ApprovalDeclined
		p["needs_review"] = false
	case VerdictAdminComplete:
		p["is_admin"] = true
		p["needs_review"] = false
		if existing == nil {
			p["medical_approval"] = ApprovalPending
		}
	case VerdictDraft:
		if !Final(stored) {
			p["medical_approval"] = ApprovalPending
			p["needs_review"] = true
		}
	default:
		return nil, fmt.Errorf("unknown verdict %d", in.Verdict)
	}
	p.EnforceConsistency(stored)

	res := &SaveResult{Patch: p}
	if existing != nil {
		p["updated_at"] = datastore.NewTimestamp(now)
		res.Revised = EarlierCycle(existing, now)
		if err := s.repo.Update(ctx, in.DonorID, p); err != nil {
			return nil, err
		}
	} else {
		res.Created = true
		if err := s.repo.Create(ctx, in.DonorID, p); err != nil {
			return nil, err
		}
	}

	rec, err := s.repo.Get(ctx, in.DonorID)
	if err != nil {
		return nil, err
	}
	res.Record = rec

	s.logger.Info().
		Int64("donor_id", in.DonorID).
		Str("medical_approval", approvalOf(rec)).
		Bool("created", res.Created).
		Bool("revised", res.Revised).
		Msg("medical history saved")
	return res, nil
}

// EarlierCycle reports whether rec predates today's intake: it was created on
// an earlier day, or it was already updated on a day other than its creation.
func EarlierCycle(rec *Record, now time.Time) bool {
	if rec.CreatedAt == nil {
		return false
	}
	loc := now.Location()
	if !datastore.SameDay(rec.CreatedAt.Time, now, loc) {
		return true
	}
	return rec.UpdatedAt != nil && !rec.UpdatedAt.IsZero() && !datastore.SameDay(rec.CreatedAt.Time, rec.UpdatedAt.Time, loc)
}

func approvalOf(rec *Record) string {
	if rec == nil {
		return ""
	}
	return rec.MedicalApproval
}
