package workflow

import (
	"embed"
	"fmt"
	"io"

	"github.com/bloodbank/donorflow/internal/domain/medicalhistory"
	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/domain/screening"
	"github.com/bloodbank/donorflow/internal/platform/render"
)

//go:embed views/*.html
var viewFS embed.FS

// ViewState is the JSON data island embedded in every fragment. The dashboard
// script reads it to enable buttons and pick the next modal.
type ViewState struct {
	View       Step     `json:"view"`
	Step       Step     `json:"step"`
	DeferredAt Step     `json:"deferred_at,omitempty"`
	Flow       Flow     `json:"flow"`
	DonorID    int64    `json:"donor_id,omitempty"`
	Editable   bool     `json:"editable"`
	IsAdmin    bool     `json:"is_admin"`
	Degraded   []string `json:"degraded,omitempty"`
}

// ViewData is the model passed to a step template.
type ViewData struct {
	State    ViewState
	Session  Session
	Overview *Overview

	Screening    *screening.Screening
	PhysicalExam *physicalexam.Exam

	Questions     []medicalhistory.Question
	DonationTypes []string
	BloodTypes    []string
	Remarks       []string
}

// Answer is the stored answer to question n, for prefilling radio buttons.
func (d ViewData) Answer(n int) *bool {
	if d.Overview == nil {
		return nil
	}
	return d.Overview.MedicalHistory.Answer(n)
}

func (d ViewData) Remark(n int) string {
	if d.Overview == nil {
		return ""
	}
	return d.Overview.MedicalHistory.Remark(n)
}

// Views renders the step fragments.
type Views struct {
	r *render.Renderer
}

func NewViews() (*Views, error) {
	r, err := render.New(viewFS, "views/*.html")
	if err != nil {
		return nil, err
	}
	return &Views{r: r}, nil
}

// Data builds the model for step. ov may be nil before a donor exists.
func (v *Views) Data(step Step, actor Actor, s Session, ov *Overview) ViewData {
	d := ViewData{
		State: ViewState{
			View:       step,
			Step:       s.Step,
			DeferredAt: s.DeferredAt,
			Flow:       s.Flow,
			DonorID:    s.DonorID,
			IsAdmin:    actor.IsAdmin(),
		},
		Session:  s,
		Overview: ov,
	}
	if d.State.Flow == "" {
		d.State.Flow = actor.Flow()
	}
	if ov != nil {
		d.State.Degraded = ov.Degraded
		d.Screening = ov.Screening
		d.PhysicalExam = ov.PhysicalExam
	}
	d.State.Editable = Admit(s, viewCommand(step)) == nil

	switch step {
	case StepScreening:
		d.DonationTypes = screening.DonationTypeOptions
		d.BloodTypes = screening.BloodTypeOptions
	case StepMedicalHistory:
		d.Questions = medicalhistory.Questions[:]
	case StepPhysicalExam:
		d.Remarks = physicalexam.RemarksOptions
		d.BloodTypes = screening.BloodTypeOptions
		if ov != nil && !ov.PhysicalExam.Editable() {
			d.State.Editable = false
		}
	}
	return d
}

func (v *Views) Render(w io.Writer, step Step, data ViewData) error {
	if _, ok := ParseStep(string(step)); !ok {
		return fmt.Errorf("no view for step %q", step)
	}
	return v.r.Render(w, string(step), data, nil)
}

// viewCommand is the command a view would submit, used to decide whether its
// form is enabled.
func viewCommand(step Step) Command {
	switch step {
	case StepScreening:
		return SubmitScreening{}
	case StepMedicalHistory:
		return SubmitMedicalHistory{}
	case StepPhysicalExam:
		return SubmitPhysicalExam{}
	case StepDeclaration:
		return ConfirmDeclaration{}
	default:
		return SubmitPersonalData{}
	}
}
