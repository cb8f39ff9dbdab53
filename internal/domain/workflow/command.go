package workflow

import (
	"fmt"
	"net/url"
	"strings"
)

// Command is one of the closed set of workflow commands. Each command is
// handled by exactly one engine method.
type Command interface {
	// Step is the step the command belongs to.
	Step() Step
	// Name identifies the command in logs and errors.
	Name() string
	// Donor is the donor the command targets, or 0 for the session's donor.
	Donor() int64
	permission() string
}

// MedicalHistoryAction is the verdict submitted with a medical history.
type MedicalHistoryAction string

const (
	ActionApprove       MedicalHistoryAction = "approve"
	ActionDecline       MedicalHistoryAction = "decline"
	ActionAdminComplete MedicalHistoryAction = "admin_complete"
	ActionNext          MedicalHistoryAction = "next"
)

// ParseMedicalHistoryAction rejects anything outside the four actions.
func ParseMedicalHistoryAction(raw string) (MedicalHistoryAction, error) {
	switch a := MedicalHistoryAction(strings.TrimSpace(raw)); a {
	case ActionApprove, ActionDecline, ActionAdminComplete, ActionNext:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}

// ResolveMedicalHistoryAction parses raw for actor. Admins submitting without
// an action get admin_complete, matching the admin form.
func ResolveMedicalHistoryAction(raw string, a Actor) (MedicalHistoryAction, error) {
	if strings.TrimSpace(raw) == "" && a.IsAdmin() {
		return ActionAdminComplete, nil
	}
	return ParseMedicalHistoryAction(raw)
}

type SubmitPersonalData struct {
	Form url.Values
}

func (SubmitPersonalData) Step() Step         { return StepPersonalData }
func (SubmitPersonalData) Name() string       { return "submit personal data" }
func (SubmitPersonalData) Donor() int64       { return 0 }
func (SubmitPersonalData) permission() string { return "personal_data" }

type SubmitScreening struct {
	DonorID int64
	Form    url.Values
}

func (SubmitScreening) Step() Step         { return StepScreening }
func (SubmitScreening) Name() string       { return "submit screening" }
func (c SubmitScreening) Donor() int64     { return c.DonorID }
func (SubmitScreening) permission() string { return "screening" }

type SubmitMedicalHistory struct {
	DonorID int64
	Action  MedicalHistoryAction
	Form    url.Values
}

func (SubmitMedicalHistory) Step() Step           { return StepMedicalHistory }
func (c SubmitMedicalHistory) Name() string       { return "submit medical history (" + string(c.Action) + ")" }
func (c SubmitMedicalHistory) Donor() int64       { return c.DonorID }
func (c SubmitMedicalHistory) permission() string { return "medical_history:" + string(c.Action) }

type SubmitPhysicalExam struct {
	DonorID int64
	Form    url.Values
}

func (SubmitPhysicalExam) Step() Step         { return StepPhysicalExam }
func (SubmitPhysicalExam) Name() string       { return "submit physical exam" }
func (c SubmitPhysicalExam) Donor() int64     { return c.DonorID }
func (SubmitPhysicalExam) permission() string { return "physical_exam" }

type ConfirmDeclaration struct {
	DonorID int64
}

func (ConfirmDeclaration) Step() Step         { return StepDeclaration }
func (ConfirmDeclaration) Name() string       { return "confirm declaration" }
func (c ConfirmDeclaration) Donor() int64     { return c.DonorID }
func (ConfirmDeclaration) permission() string { return "declaration" }

// Cancel abandons the registration in progress.
type Cancel struct{}

func (Cancel) Step() Step         { return StepCancelled }
func (Cancel) Name() string       { return "cancel" }
func (Cancel) Donor() int64       { return 0 }
func (Cancel) permission() string { return "cancel" }
