package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/platform/events"
)

const (
	EventMedicalHistoryRevised = "medical_history.revised"
	EventStepCompleted         = "workflow.step_completed"
)

// MedicalHistoryRevised is published when a medical history from an earlier
// intake cycle is edited. Screening, physical exam and blood collection done
// against the old answers no longer hold.
type MedicalHistoryRevised struct {
	DonorID   int64     `json:"donor_id"`
	RevisedAt time.Time `json:"revised_at"`
}

func (MedicalHistoryRevised) EventName() string       { return EventMedicalHistoryRevised }
func (e MedicalHistoryRevised) EventDonorID() int64   { return e.DonorID }
func (e MedicalHistoryRevised) OccurredAt() time.Time { return e.RevisedAt }

// StepCompletedEvent is published after every successful command so dashboards
// can refresh.
type StepCompletedEvent struct {
	DonorID int64     `json:"donor_id"`
	Command string    `json:"command"`
	Step    Step      `json:"step"`
	UserID  string    `json:"user_id"`
	At      time.Time `json:"at"`
}

func (StepCompletedEvent) EventName() string       { return EventStepCompleted }
func (e StepCompletedEvent) EventDonorID() int64   { return e.DonorID }
func (e StepCompletedEvent) OccurredAt() time.Time { return e.At }

// Resetter reopens one kind of downstream record. It reports whether a record
// was changed.
type Resetter interface {
	Reset(ctx context.Context, donorID int64) (bool, error)
}

// ResetterFunc adapts a function to Resetter.
type ResetterFunc func(ctx context.Context, donorID int64) (bool, error)

func (f ResetterFunc) Reset(ctx context.Context, donorID int64) (bool, error) { return f(ctx, donorID) }

// ResetReport lists which downstream records a revision reopened.
type ResetReport struct {
	DonorID         int64 `json:"donor_id"`
	Screening       bool  `json:"screening"`
	PhysicalExam    bool  `json:"physical_exam"`
	BloodCollection bool  `json:"blood_collection"`
}

// Empty reports whether nothing was reset.
func (r ResetReport) Empty() bool {
	return !r.Screening && !r.PhysicalExam && !r.BloodCollection
}

// DownstreamResetter handles MedicalHistoryRevised by reopening the donor's
// screening, physical exam and blood collection.
type DownstreamResetter struct {
	screening       Resetter
	physicalExam    Resetter
	bloodCollection Resetter
	logger          zerolog.Logger
}

func NewDownstreamResetter(screening, physicalExam, bloodCollection Resetter, logger zerolog.Logger) *DownstreamResetter {
	return &DownstreamResetter{
		screening:       screening,
		physicalExam:    physicalExam,
		bloodCollection: bloodCollection,
		logger:          logger.With().Str("component", "downstream_resetter").Logger(),
	}
}

// Subscribe registers the resetter on bus.
func (r *DownstreamResetter) Subscribe(bus *events.Bus) {
	bus.Subscribe(EventMedicalHistoryRevised, "downstream_resetter", r.Handle)
}

func (r *DownstreamResetter) Handle(ctx context.Context, e events.Event) error {
	revised, ok := e.(MedicalHistoryRevised)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	report, err := r.Reset(ctx, revised.DonorID)
	r.logger.Info().
		Int64("donor_id", report.DonorID).
		Bool("screening", report.Screening).
		Bool("physical_exam", report.PhysicalExam).
		Bool("blood_collection", report.BloodCollection).
		Msg("downstream records reset after medical history revision")
	return err
}

// Reset reopens every downstream record of donorID. Each part is attempted
// even when an earlier one fails.
func (r *DownstreamResetter) Reset(ctx context.Context, donorID int64) (ResetReport, error) {
	report := ResetReport{DonorID: donorID}
	var errs []error

	parts := []struct {
		name  string
		r     Resetter
		field *bool
	}{
		{"screening", r.screening, &report.Screening},
		{"physical exam", r.physicalExam, &report.PhysicalExam},
		{"blood collection", r.bloodCollection, &report.BloodCollection},
	}
	for _, p := range parts {
		if p.r == nil {
			continue
		}
		changed, err := p.r.Reset(ctx, donorID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", p.name, err))
			continue
		}
		*p.field = changed
	}
	return report, errors.Join(errs...)
}
