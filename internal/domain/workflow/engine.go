package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/domain/donor"
	"github.com/bloodbank/donorflow/internal/domain/eligibility"
	"github.com/bloodbank/donorflow/internal/domain/medicalhistory"
	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/domain/screening"
	"github.com/bloodbank/donorflow/internal/domain/staff"
	"github.com/bloodbank/donorflow/internal/platform/events"
)

const declarationDateLayout = "2006-01-02"

// Result is the JSON reply to a workflow command.
type Result struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Action   string   `json:"action,omitempty"`
	DonorID  int64    `json:"donor_id,omitempty"`
	Step     Step     `json:"step,omitempty"`
	Redirect string   `json:"redirect_url,omitempty"`
	Deferred bool     `json:"deferred,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Deps are the collaborators of an Engine. Staff and Bus may be nil.
type Deps struct {
	Donors          *donor.Service
	Screenings      *screening.Service
	MedicalHistory  *medicalhistory.Service
	PhysicalExams   *physicalexam.Service
	Eligibility     *eligibility.Service
	Staff           staff.Directory
	Bus             *events.Bus
	Loader          *Loader
	DefaultReferrer string
}

// Engine runs workflow commands: it checks the actor, performs the step's
// persistence and events, then moves the session with Transition.
type Engine struct {
	donors          *donor.Service
	screenings      *screening.Service
	medicalHistory  *medicalhistory.Service
	physicalExams   *physicalexam.Service
	eligibility     *eligibility.Service
	staff           staff.Directory
	bus             *events.Bus
	loader          *Loader
	defaultReferrer string
	now             func() time.Time
	logger          zerolog.Logger
}

func NewEngine(deps Deps, logger zerolog.Logger) *Engine {
	ref := deps.DefaultReferrer
	if ref == "" {
		ref = "/dashboard"
	}
	return &Engine{
		donors:          deps.Donors,
		screenings:      deps.Screenings,
		medicalHistory:  deps.MedicalHistory,
		physicalExams:   deps.PhysicalExams,
		eligibility:     deps.Eligibility,
		staff:           deps.Staff,
		bus:             deps.Bus,
		loader:          deps.Loader,
		defaultReferrer: ref,
		now:             time.Now,
		logger:          logger.With().Str("component", "workflow").Logger(),
	}
}

func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Handle runs cmd for actor against sess. It returns the reply and the session
// to store. On error the returned session is sess unchanged.
func (e *Engine) Handle(ctx context.Context, actor Actor, sess Session, cmd Command) (*Result, Session, error) {
	if err := actor.Validate(); err != nil {
		return nil, sess, err
	}
	if err := Authorize(actor, cmd); err != nil {
		return nil, sess, err
	}

	// A dashboard may post for a donor other than the one in progress.
	s := sess
	if id := cmd.Donor(); id != 0 && id != s.DonorID {
		opened, err := e.Open(ctx, actor, s, id, "")
		if err != nil {
			return nil, sess, err
		}
		s = opened
	}
	if err := Admit(s, cmd); err != nil {
		return nil, sess, err
	}
	if err := e.requireScreening(ctx, s, cmd); err != nil {
		return nil, sess, err
	}

	var (
		res *Result
		out Outcome
		err error
	)
	switch c := cmd.(type) {
	case SubmitPersonalData:
		res, out, err = e.submitPersonalData(ctx, actor, c)
	case SubmitScreening:
		res, out, err = e.submitScreening(ctx, actor, s, c)
	case SubmitMedicalHistory:
		res, out, err = e.submitMedicalHistory(ctx, actor, s, c)
	case SubmitPhysicalExam:
		res, out, err = e.submitPhysicalExam(ctx, actor, s, c)
	case ConfirmDeclaration:
		res, out, err = e.confirmDeclaration(ctx, actor, s)
	case Cancel:
		res = &Result{Success: true, Message: "Registration cancelled", Redirect: e.referrer(s)}
	default:
		return nil, sess, fmt.Errorf("unhandled command %T", cmd)
	}
	if err != nil {
		return nil, sess, err
	}

	next, err := Transition(s, cmd, out)
	if err != nil {
		return nil, sess, err
	}

	donorID := s.DonorID
	if out.DonorID != 0 {
		donorID = out.DonorID
	}
	res.DonorID = donorID
	res.Step = next.Step

	e.logger.Info().
		Str("command", cmd.Name()).
		Str("user_id", actor.UserID).
		Int64("donor_id", donorID).
		Str("from", string(s.Step)).
		Str("to", string(next.Step)).
		Msg("workflow command handled")

	e.publish(ctx, StepCompletedEvent{
		DonorID: donorID,
		Command: cmd.Name(),
		Step:    next.Step,
		UserID:  actor.UserID,
		At:      e.now(),
	})
	return res, next, nil
}

// Open points the session at an existing donor and resumes at the step its
// stored records call for. referrer replaces the stored referrer when set.
func (e *Engine) Open(ctx context.Context, actor Actor, sess Session, donorID int64, referrer string) (Session, error) {
	if err := actor.Validate(); err != nil {
		return sess, err
	}
	if donorID <= 0 {
		return sess, &MissingDonorError{RedirectStep: StepPersonalData}
	}
	ov, err := e.loader.Load(ctx, donorID)
	if err != nil {
		return sess, err
	}

	next := sess.ClearRegistration()
	if referrer != "" {
		next.Referrer = referrer
	}
	next.DonorID = donorID
	next.Step, next.DeferredAt = ov.ResumeStep()
	next.Flow = resumeFlow(actor, next.Step, next.DeferredAt)
	if ov.Donor != nil {
		next.RegisteredName = ov.Donor.FullName()
	}
	if ov.Screening != nil {
		next.ScreeningID = ov.Screening.ScreeningID
		next.TransferredScreening = ov.Screening.Snapshot()
	}
	if ov.MedicalHistory != nil {
		next.MedicalHistoryID = ov.MedicalHistory.MedicalHistoryID
	}
	if ov.PhysicalExam != nil {
		next.PhysicalExamID = ov.PhysicalExam.PhysicalExamID
	}

	e.logger.Info().
		Int64("donor_id", donorID).
		Str("step", string(next.Step)).
		Strs("degraded", ov.Degraded).
		Msg("donor opened")
	return next, nil
}

// resumeFlow is the actor's flow when the resumed step belongs to it. An
// admin opening a donor who still needs screening or an exam walks the
// staff flow.
func resumeFlow(actor Actor, step, deferredAt Step) Flow {
	at := step
	if step == StepDeferred {
		at = deferredAt
	}
	if f := actor.Flow(); f.Contains(at) {
		return f
	}
	return FlowStaff
}

// requireScreening holds back the physical exam and the declaration of a
// staff registration until the donor's latest screening has passed.
func (e *Engine) requireScreening(ctx context.Context, s Session, cmd Command) error {
	want := cmd.Step()
	if want != StepPhysicalExam && want != StepDeclaration {
		return nil
	}
	if !s.Flow.Contains(StepScreening) {
		return nil
	}
	sc, err := e.screenings.Latest(ctx, s.DonorID)
	if err != nil {
		return fmt.Errorf("check screening: %w", err)
	}
	if sc == nil || !sc.Passed() {
		return &SequenceError{Current: StepScreening, Requested: want}
	}
	return nil
}

func (e *Engine) submitPersonalData(ctx context.Context, actor Actor, c SubmitPersonalData) (*Result, Outcome, error) {
	d := donor.FromForm(c.Form)
	if err := e.donors.Register(ctx, d); err != nil {
		return nil, Outcome{}, err
	}
	return &Result{Success: true, Message: "Personal data saved"}, Outcome{
		DonorID:        d.DonorID,
		Flow:           actor.Flow(),
		Advance:        true,
		RegisteredName: d.FullName(),
	}, nil
}

func (e *Engine) submitScreening(ctx context.Context, actor Actor, s Session, c SubmitScreening) (*Result, Outcome, error) {
	sc, err := screening.FromForm(s.DonorID, c.Form)
	if err != nil {
		return nil, Outcome{}, err
	}
	saved, err := e.screenings.Submit(ctx, sc, e.staffUser(ctx, actor))
	if err != nil {
		return nil, Outcome{}, err
	}
	return &Result{Success: true, Message: "Screening saved"}, Outcome{
		Advance:     true,
		ScreeningID: saved.ScreeningID,
		Screening:   saved.Snapshot(),
	}, nil
}

var verdicts = map[MedicalHistoryAction]medicalhistory.Verdict{
	ActionApprove:       medicalhistory.VerdictApprove,
	ActionDecline:       medicalhistory.VerdictDecline,
	ActionAdminComplete: medicalhistory.VerdictAdminComplete,
	ActionNext:          medicalhistory.VerdictDraft,
}

var actionMessages = map[MedicalHistoryAction]string{
	ActionApprove:       "Medical history approved",
	ActionDecline:       "Medical history declined",
	ActionAdminComplete: "Medical history completed",
	ActionNext:          "Medical history saved",
}

func (e *Engine) submitMedicalHistory(ctx context.Context, actor Actor, s Session, c SubmitMedicalHistory) (*Result, Outcome, error) {
	verdict, ok := verdicts[c.Action]
	if !ok {
		return nil, Outcome{}, fmt.Errorf("%w: %q", ErrInvalidAction, c.Action)
	}

	interviewer := ""
	if u := e.staffUser(ctx, actor); u != nil {
		interviewer = u.DisplayName()
	}
	saved, err := e.medicalHistory.Save(ctx, medicalhistory.SaveInput{
		DonorID:     s.DonorID,
		Answers:     medicalhistory.ParseAnswers(c.Form),
		Verdict:     verdict,
		Interviewer: interviewer,
	})
	if err != nil {
		return nil, Outcome{}, err
	}

	if saved.Revised {
		e.publish(ctx, MedicalHistoryRevised{DonorID: s.DonorID, RevisedAt: e.now()})
	}

	out := Outcome{}
	if saved.Record != nil {
		out.MedicalHistoryID = saved.Record.MedicalHistoryID
	}
	latest, err := e.screenings.Latest(ctx, s.DonorID)
	switch {
	case err != nil:
		e.logger.Warn().Err(err).Int64("donor_id", s.DonorID).Msg("screening snapshot unavailable")
	case latest != nil:
		out.Screening = latest.Snapshot()
	}
	// A revision reopens the screening; the donor is screened again before
	// the exam.
	if saved.Revised && (err != nil || (latest != nil && !latest.Passed())) {
		out.Rescreen = true
	}

	switch c.Action {
	case ActionApprove, ActionAdminComplete:
		out.Advance = true
	case ActionDecline:
		out.Deferred = true
	case ActionNext:
		out.Advance = saved.Record != nil && saved.Record.MedicalApproval == medicalhistory.ApprovalApproved
	}
	return &Result{Success: true, Message: actionMessages[c.Action], Action: string(c.Action)}, out, nil
}

func (e *Engine) submitPhysicalExam(ctx context.Context, actor Actor, s Session, c SubmitPhysicalExam) (*Result, Outcome, error) {
	exam, err := physicalexam.FromForm(s.DonorID, c.Form)
	if err != nil {
		return nil, Outcome{}, err
	}
	if exam.Physician == "" {
		if u := e.staffUser(ctx, actor); u != nil {
			exam.Physician = u.DisplayName()
		}
	}
	saved, err := e.physicalExams.Save(ctx, exam)
	if err != nil {
		return nil, Outcome{}, err
	}
	e.recordEligibility(ctx, s, saved)

	out := Outcome{PhysicalExamID: saved.PhysicalExamID}
	switch {
	case saved.Remarks == physicalexam.RemarksAccepted:
		out.Advance = true
	case physicalexam.Deferred(saved.Remarks):
		out.Deferred = true
	}
	return &Result{Success: true, Message: "Physical examination saved"}, out, nil
}

// recordEligibility derives the donor's eligibility from a saved exam. A
// failure is logged; the exam itself is already stored.
func (e *Engine) recordEligibility(ctx context.Context, s Session, exam *physicalexam.Exam) {
	if e.eligibility == nil {
		return
	}
	in := eligibility.Input{
		DonorID:          s.DonorID,
		MedicalHistoryID: s.MedicalHistoryID,
		ScreeningID:      s.ScreeningID,
		PhysicalExamID:   exam.PhysicalExamID,
		Remarks:          exam.Remarks,
	}
	if exam.Reason != nil {
		in.Reason = *exam.Reason
	}
	if snap := s.TransferredScreening; snap != nil {
		in.ScreeningID = snap.ScreeningID
		in.BloodType = snap.BloodType
		in.DonationType = snap.DonationType
	}
	if _, err := e.eligibility.Record(ctx, in); err != nil {
		e.logger.Error().Err(err).Int64("donor_id", s.DonorID).Msg("eligibility not recorded")
	}
}

func (e *Engine) confirmDeclaration(ctx context.Context, actor Actor, s Session) (*Result, Outcome, error) {
	decl := &Declaration{
		DonorID:   s.DonorID,
		DonorName: s.RegisteredName,
		Date:      e.now().Format(declarationDateLayout),
		Screening: s.TransferredScreening,
	}
	if decl.DonorName == "" {
		d, err := e.donors.Get(ctx, s.DonorID)
		switch {
		case err == nil:
			decl.DonorName = d.FullName()
		case errors.Is(err, donor.ErrNotFound):
			return nil, Outcome{}, err
		default:
			e.logger.Warn().Err(err).Int64("donor_id", s.DonorID).Msg("donor name unavailable for declaration")
		}
	}
	if u := e.staffUser(ctx, actor); u != nil {
		decl.Interviewer = u.DisplayName()
	}

	return &Result{
		Success:  true,
		Message:  "Registration completed",
		Redirect: withQuery(e.referrer(s), "donor_registered", "1"),
	}, Outcome{Declaration: decl}, nil
}

func (e *Engine) referrer(s Session) string {
	if r := localPath(s.Referrer, ""); r != "" {
		return r
	}
	return e.defaultReferrer
}

// staffUser resolves the acting user for attribution. Lookup failures leave
// the record unattributed.
func (e *Engine) staffUser(ctx context.Context, actor Actor) *staff.User {
	if e.staff == nil {
		return nil
	}
	u, err := e.staff.Lookup(ctx, actor.UserID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", actor.UserID).Msg("staff lookup failed")
		return nil
	}
	return u
}

// publish delivers ev. Handler failures are logged by the bus and never fail
// the command.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(ctx, ev)
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
