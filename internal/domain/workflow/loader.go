package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bloodbank/donorflow/internal/domain/donor"
	"github.com/bloodbank/donorflow/internal/domain/eligibility"
	"github.com/bloodbank/donorflow/internal/domain/medicalhistory"
	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/domain/screening"
)

// Overview sections, as named in Degraded.
const (
	SectionScreening      = "screening"
	SectionMedicalHistory = "medical_history"
	SectionPhysicalExam   = "physical_exam"
	SectionEligibility    = "eligibility"
)

type DonorReader interface {
	Get(ctx context.Context, id int64) (*donor.Donor, error)
}

type ScreeningReader interface {
	Latest(ctx context.Context, donorID int64) (*screening.Screening, error)
}

type MedicalHistoryReader interface {
	Get(ctx context.Context, donorID int64) (*medicalhistory.Record, error)
}

type PhysicalExamReader interface {
	Latest(ctx context.Context, donorID int64) (*physicalexam.Exam, error)
}

type EligibilityReader interface {
	Latest(ctx context.Context, donorID int64) (*eligibility.Record, error)
}

// Overview is everything stored about one donor's intake. A section whose read
// failed is nil and listed in Degraded.
type Overview struct {
	Donor          *donor.Donor           `json:"donor"`
	Screening      *screening.Screening   `json:"screening"`
	MedicalHistory *medicalhistory.Record `json:"medical_history"`
	PhysicalExam   *physicalexam.Exam     `json:"physical_exam"`
	Eligibility    *eligibility.Record    `json:"eligibility"`
	Degraded       []string               `json:"degraded,omitempty"`
}

// Loader reads a donor's records concurrently.
type Loader struct {
	donors         DonorReader
	screenings     ScreeningReader
	medicalHistory MedicalHistoryReader
	physicalExams  PhysicalExamReader
	eligibility    EligibilityReader
	logger         zerolog.Logger
}

func NewLoader(donors DonorReader, screenings ScreeningReader, medicalHistory MedicalHistoryReader,
	physicalExams PhysicalExamReader, elig EligibilityReader, logger zerolog.Logger) *Loader {
	return &Loader{
		donors:         donors,
		screenings:     screenings,
		medicalHistory: medicalHistory,
		physicalExams:  physicalExams,
		eligibility:    elig,
		logger:         logger.With().Str("component", "workflow_loader").Logger(),
	}
}

// Load fetches the donor and the latest record of every step in parallel. The
// donor itself is required; any other failed read only degrades its section.
func (l *Loader) Load(ctx context.Context, donorID int64) (*Overview, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		ov       = &Overview{}
		donorErr error
	)
	degrade := func(section string, err error) {
		l.logger.Warn().Err(err).Int64("donor_id", donorID).Str("section", section).Msg("overview section unavailable")
		mu.Lock()
		ov.Degraded = append(ov.Degraded, section)
		mu.Unlock()
	}

	g.Go(func() error {
		ov.Donor, donorErr = l.donors.Get(ctx, donorID)
		return nil
	})
	g.Go(func() error {
		sc, err := l.screenings.Latest(ctx, donorID)
		if err != nil {
			degrade(SectionScreening, err)
			return nil
		}
		ov.Screening = sc
		return nil
	})
	g.Go(func() error {
		rec, err := l.medicalHistory.Get(ctx, donorID)
		if err != nil {
			degrade(SectionMedicalHistory, err)
			return nil
		}
		ov.MedicalHistory = rec
		return nil
	})
	g.Go(func() error {
		exam, err := l.physicalExams.Latest(ctx, donorID)
		if err != nil {
			degrade(SectionPhysicalExam, err)
			return nil
		}
		ov.PhysicalExam = exam
		return nil
	})
	if l.eligibility != nil {
		g.Go(func() error {
			rec, err := l.eligibility.Latest(ctx, donorID)
			if err != nil {
				degrade(SectionEligibility, err)
				return nil
			}
			ov.Eligibility = rec
			return nil
		})
	}
	_ = g.Wait()

	if donorErr != nil {
		return nil, donorErr
	}
	sort.Strings(ov.Degraded)
	return ov, nil
}

// ResumeStep is where a registration for this donor picks up: the first step
// whose record is missing or undecided. A declined medical history or a
// deferring exam resumes as deferred at that step.
func (ov *Overview) ResumeStep() (step, deferredAt Step) {
	if ov.Screening == nil || !ov.Screening.Passed() {
		return StepScreening, ""
	}
	if ov.MedicalHistory == nil {
		return StepMedicalHistory, ""
	}
	switch ov.MedicalHistory.MedicalApproval {
	case medicalhistory.ApprovalDeclined:
		return StepDeferred, StepMedicalHistory
	case medicalhistory.ApprovalApproved:
	default:
		return StepMedicalHistory, ""
	}
	switch {
	case ov.PhysicalExam == nil || ov.PhysicalExam.Editable():
		return StepPhysicalExam, ""
	case physicalexam.Deferred(ov.PhysicalExam.Remarks):
		return StepDeferred, StepPhysicalExam
	}
	return StepDeclaration, ""
}
