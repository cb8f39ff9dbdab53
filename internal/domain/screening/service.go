package screening

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/domain/staff"
	"github.com/bloodbank/donorflow/internal/platform/datastore"
	"github.com/bloodbank/donorflow/internal/platform/validate"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "screening").Logger(),
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Submit checks the vitals of sc and, when they are in range, stores it as a
// passed screening: the donor's latest screening is updated in place, or a new
// one is created. Out-of-range vitals return a deferral *validate.Error and
// nothing is written. by may be nil when the interviewer could not be
// resolved.
func (s *Service) Submit(ctx context.Context, sc *Screening, by *staff.User) (*Screening, error) {
	if warnings := CheckVitals(sc.BodyWeight, sc.SpecificGravity); len(warnings) > 0 {
		s.logger.Info().
			Int64("donor_id", sc.DonorFormID).
			Float64("body_weight", sc.BodyWeight).
			Float64("specific_gravity", sc.SpecificGravity).
			Msg("screening deferred")
		return nil, &validate.Error{Issues: warnings}
	}

	now := s.now()
	sc.Status = StatusPassed
	sc.InterviewDate = now.Format(dateLayout)
	if by != nil {
		sc.InterviewerID = by.UserID
		sc.Staff = by.SortName()
	}

	latest, err := s.repo.Latest(ctx, sc.DonorFormID)
	if err != nil {
		return nil, err
	}

	if latest != nil {
		id := latest.ScreeningID
		sc.ScreeningID = 0
		sc.CreatedAt = nil
		ts := datastore.NewTimestamp(now)
		sc.UpdatedAt = &ts
		if err := s.repo.Update(ctx, id, sc); err != nil {
			return nil, err
		}
		sc.ScreeningID = id
		sc.CreatedAt = latest.CreatedAt
		return sc, nil
	}

	if !sc.HasPreviousDonation {
		// First donation on record counts this one.
		sc.RedCrossDonations = 1
		sc.HospitalDonations = 0
		today := sc.InterviewDate
		sc.LastRCDonationDate = &today
		if by != nil && by.OfficeAddress != "" {
			place := by.OfficeAddress
			sc.LastRCDonationPlace = &place
		}
	}
	sc.ScreeningID = 0
	if err := s.repo.Create(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Service) Latest(ctx context.Context, donorID int64) (*Screening, error) {
	return s.repo.Latest(ctx, donorID)
}

// Reset returns the donor's latest screening to pending and refreshes its
// interview date so the donor is screened again. A screening passed today
// already belongs to the current intake and is kept. It reports whether a
// record was reopened.
func (s *Service) Reset(ctx context.Context, donorID int64) (bool, error) {
	latest, err := s.repo.Latest(ctx, donorID)
	if err != nil || latest == nil {
		return false, err
	}
	now := s.now()
	if latest.Passed() && latest.InterviewDate == now.Format(dateLayout) {
		return false, nil
	}
	err = s.repo.Patch(ctx, latest.ScreeningID, map[string]any{
		"status":         StatusPending,
		"interview_date": now.Format(dateLayout),
		"updated_at":     datastore.NewTimestamp(now),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
