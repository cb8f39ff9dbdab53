package workflow

import "github.com/bloodbank/donorflow/internal/domain/screening"

// Outcome is what the engine learned while performing a command's side
// effects.
type Outcome struct {
	// DonorID is the donor created by personal data.
	DonorID int64
	// Flow is the flow a new registration follows.
	Flow Flow
	// Advance is set when the step's requirements were met.
	Advance bool
	// Deferred is set when the donor was declined or deferred at the step.
	Deferred bool
	// Rescreen is set when a medical history revision reopened the donor's
	// screening. The cursor goes back to screening.
	Rescreen bool

	// Records written by the step, remembered in the session.
	ScreeningID      int64
	MedicalHistoryID int64
	PhysicalExamID   int64
	Screening        *screening.Snapshot
	RegisteredName   string
	Declaration      *Declaration
}

// Admit checks that cmd may run against s without performing it. A command
// for the current step or for a step already passed is admitted while the
// workflow is not completed.
func Admit(s Session, cmd Command) error {
	switch cmd.(type) {
	case Cancel:
		if s.Step == StepCompleted {
			return &SequenceError{Current: s.Step, Requested: StepCancelled}
		}
		return nil
	case SubmitPersonalData:
		if s.Active() {
			return &SequenceError{Current: s.Step, Requested: StepPersonalData}
		}
		return nil
	}

	want := cmd.Step()
	if s.DonorID == 0 {
		return &MissingDonorError{RedirectStep: s.Flow.Previous(want)}
	}
	cursor := s.Step
	if cursor == StepDeferred {
		cursor = s.DeferredAt
	}
	if cursor == StepCompleted || cursor == StepCancelled || cursor == "" {
		return &SequenceError{Current: s.Step, Requested: want}
	}
	if !s.Flow.Contains(want) || s.Flow.index(want) > s.Flow.index(cursor) {
		return &SequenceError{Current: s.Step, Requested: want}
	}
	return nil
}

// Transition returns the session after cmd ran with outcome out. It is pure;
// the engine performs the side effects before calling it.
func Transition(s Session, cmd Command, out Outcome) (Session, error) {
	if err := Admit(s, cmd); err != nil {
		return s, err
	}

	switch cmd.(type) {
	case Cancel:
		next := s.ClearRegistration()
		next.Step = StepCancelled
		return next, nil
	case SubmitPersonalData:
		next := s.ClearRegistration()
		next.DonorID = out.DonorID
		next.Flow = out.Flow
		if next.Flow == "" {
			next.Flow = FlowStaff
		}
		next.RegisteredName = out.RegisteredName
		next.Step = next.Flow.Next(StepPersonalData)
		return next, nil
	case ConfirmDeclaration:
		next := s.ClearRegistration()
		next.Step = StepCompleted
		next.DeclarationCompleted = true
		next.Declaration = out.Declaration
		return next, nil
	}

	if out.ScreeningID != 0 {
		s.ScreeningID = out.ScreeningID
	}
	if out.MedicalHistoryID != 0 {
		s.MedicalHistoryID = out.MedicalHistoryID
	}
	if out.PhysicalExamID != 0 {
		s.PhysicalExamID = out.PhysicalExamID
	}
	if out.Screening != nil {
		s.TransferredScreening = out.Screening
	}

	at := cmd.Step()
	switch {
	case out.Deferred:
		s.Step = StepDeferred
		s.DeferredAt = at
	case out.Rescreen:
		if !s.Flow.Contains(StepScreening) {
			s.Flow = FlowStaff
		}
		s.Step = StepScreening
		s.DeferredAt = ""
	case out.Advance:
		following := s.Flow.Next(at)
		switch {
		case s.Step == StepDeferred:
			// Only a new verdict at the deferring step lifts the deferral.
			if at == s.DeferredAt {
				s.Step = following
				s.DeferredAt = ""
			}
		case s.Flow.index(following) > s.Flow.index(s.Step):
			s.Step = following
		}
	}
	return s, nil
}
