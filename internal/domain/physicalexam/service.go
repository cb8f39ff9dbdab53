package physicalexam

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

// ErrLocked is returned when the latest exam already carries a verdict.
var ErrLocked = errors.New("physical examination can only be edited while pending")

// remarks that survive a downstream reset
var settledMarkers = []string{"Approved", "Completed", "Passed", "Cleared", "Accepted"}

type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "physical_exam").Logger(),
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Latest(ctx context.Context, donorID int64) (*Exam, error) {
	return s.repo.Latest(ctx, donorID)
}

// Save stores e as the donor's physical exam. The latest exam is updated
// while it is pending; a settled exam returns ErrLocked.
func (s *Service) Save(ctx context.Context, e *Exam) (*Exam, error) {
	latest, err := s.repo.Latest(ctx, e.DonorID)
	if err != nil {
		return nil, err
	}
	if !latest.Editable() {
		return nil, ErrLocked
	}

	e.NeedsReview = e.Remarks == RemarksPending
	e.PhysicalExamID = 0
	e.CreatedAt = nil

	if latest != nil {
		ts := datastore.NewTimestamp(s.now())
		e.UpdatedAt = &ts
		if err := s.repo.Update(ctx, latest.PhysicalExamID, e); err != nil {
			return nil, err
		}
		e.PhysicalExamID = latest.PhysicalExamID
		e.CreatedAt = latest.CreatedAt
	} else if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("donor_id", e.DonorID).
		Int64("physical_exam_id", e.PhysicalExamID).
		Str("remarks", e.Remarks).
		Msg("physical exam saved")
	return e, nil
}

// Reset puts the latest exam back to Pending for review unless its remarks
// show it was already settled. It reports whether a record was changed.
func (s *Service) Reset(ctx context.Context, donorID int64) (bool, error) {
	latest, err := s.repo.Latest(ctx, donorID)
	if err != nil || latest == nil {
		return false, err
	}
	if Settled(latest.Remarks) {
		return false, nil
	}
	err = s.repo.Patch(ctx, latest.PhysicalExamID, map[string]any{
		"remarks":      RemarksPending,
		"needs_review": true,
		"updated_at":   datastore.NewTimestamp(s.now()),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Settled reports whether remarks mark an exam that a reset must keep.
func Settled(remarks string) bool {
	for _, m := range settledMarkers {
		if strings.Contains(remarks, m) {
			return true
		}
	}
	return false
}
