// Package eligibility records whether a donor may give blood and until when
// the decision holds, derived from the physician's verdict.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusCompleted = "completed"
)

// Record maps to the eligibility table. CollectionSuccessful is only ever set
// by blood collection, so it is left out of writes when false.
type Record struct {
	EligibilityID        int64                `json:"eligibility_id,omitempty"`
	DonorID              int64                `json:"donor_id"`
	MedicalHistoryID     int64                `json:"medical_history_id,omitempty"`
	ScreeningID          int64                `json:"screening_id,omitempty"`
	PhysicalExamID       int64                `json:"physical_exam_id,omitempty"`
	BloodCollectionID    int64                `json:"blood_collection_id,omitempty"`
	BloodType            string               `json:"blood_type,omitempty"`
	DonationType         string               `json:"donation_type,omitempty"`
	Status               string               `json:"status"`
	CollectionSuccessful bool                 `json:"collection_successful,omitempty"`
	DisapprovalReason    *string              `json:"disapproval_reason"`
	StartDate            *datastore.Timestamp `json:"start_date,omitempty"`
	EndDate              *datastore.Timestamp `json:"end_date,omitempty"`
	CreatedAt            *datastore.Timestamp `json:"created_at,omitempty"`
	UpdatedAt            *datastore.Timestamp `json:"updated_at,omitempty"`
}

// Derive maps physical-exam remarks to an eligibility status and the end of
// the period the status holds.
func Derive(remarks string, from time.Time) (string, time.Time) {
	switch remarks {
	case physicalexam.RemarksAccepted:
		return StatusApproved, from.AddDate(0, 3, 0)
	case physicalexam.RemarksTemporarilyDeferred:
		return StatusDeclined, from.AddDate(0, 6, 0)
	case physicalexam.RemarksPermanentlyDeferred:
		return StatusDeclined, from.AddDate(100, 0, 0)
	case physicalexam.RemarksRefused:
		return StatusDeclined, from.AddDate(0, 3, 0)
	default:
		return StatusPending, from.AddDate(0, 0, 3)
	}
}

// Input links the records an eligibility decision is based on.
type Input struct {
	DonorID          int64
	MedicalHistoryID int64
	ScreeningID      int64
	PhysicalExamID   int64
	BloodType        string
	DonationType     string
	Remarks          string
	Reason           string
}

type Service struct {
	store  datastore.Store
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(store datastore.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "eligibility").Logger(),
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Latest(ctx context.Context, donorID int64) (*Record, error) {
	rec, err := datastore.Latest[Record](ctx, s.store, datastore.TableEligibility, datastore.Filter{"donor_id": donorID})
	if err != nil {
		return nil, fmt.Errorf("latest eligibility for donor %d: %w", donorID, err)
	}
	return rec, nil
}

// Record derives the eligibility for in and stores it, updating the donor's
// latest eligibility when there is one.
func (s *Service) Record(ctx context.Context, in Input) (*Record, error) {
	now := s.now()
	status, end := Derive(in.Remarks, now)
	start, until := datastore.NewTimestamp(now), datastore.NewTimestamp(end)

	rec := &Record{
		DonorID:          in.DonorID,
		MedicalHistoryID: in.MedicalHistoryID,
		ScreeningID:      in.ScreeningID,
		PhysicalExamID:   in.PhysicalExamID,
		BloodType:        in.BloodType,
		DonationType:     in.DonationType,
		Status:           status,
		StartDate:        &start,
		EndDate:          &until,
	}
	if status == StatusDeclined && in.Reason != "" {
		reason := in.Reason
		rec.DisapprovalReason = &reason
	}

	latest, err := s.Latest(ctx, in.DonorID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		rec.UpdatedAt = &start
		filter := datastore.Filter{"eligibility_id": latest.EligibilityID}
		if err := s.store.Patch(ctx, datastore.TableEligibility, filter, rec); err != nil {
			return nil, fmt.Errorf("update eligibility %d: %w", latest.EligibilityID, err)
		}
		rec.EligibilityID = latest.EligibilityID
		rec.CreatedAt = latest.CreatedAt
		rec.BloodCollectionID = latest.BloodCollectionID
		rec.CollectionSuccessful = latest.CollectionSuccessful
	} else {
		var stored []Record
		if err := s.store.Insert(ctx, datastore.TableEligibility, rec, &stored); err != nil {
			return nil, fmt.Errorf("insert eligibility: %w", err)
		}
		if len(stored) > 0 {
			rec = &stored[0]
		}
	}

	s.logger.Info().
		Int64("donor_id", in.DonorID).
		Str("status", status).
		Time("end_date", end).
		Msg("eligibility recorded")
	return rec, nil
}

// ResetCollection reopens the blood collection tracked on the latest
// eligibility, unless the collection already succeeded or the record is
// approved or completed. It reports whether a record was changed.
func (s *Service) ResetCollection(ctx context.Context, donorID int64) (bool, error) {
	latest, err := s.Latest(ctx, donorID)
	if err != nil || latest == nil {
		return false, err
	}
	if latest.CollectionSuccessful || latest.Status == StatusApproved || latest.Status == StatusCompleted {
		return false, nil
	}
	filter := datastore.Filter{"eligibility_id": latest.EligibilityID}
	err = s.store.Patch(ctx, datastore.TableEligibility, filter, map[string]any{
		"status":                StatusPending,
		"collection_successful": false,
		"updated_at":            datastore.NewTimestamp(s.now()),
	})
	if err != nil {
		return false, fmt.Errorf("reset eligibility %d: %w", latest.EligibilityID, err)
	}
	return true, nil
}
