package workflow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bloodbank/donorflow/internal/domain/screening"
)

func TestFlow_Sequence(t *testing.T) {
	tests := []struct {
		flow Flow
		from Step
		next Step
		prev Step
	}{
		{FlowStaff, StepPersonalData, StepScreening, StepPersonalData},
		{FlowStaff, StepScreening, StepMedicalHistory, StepPersonalData},
		{FlowStaff, StepMedicalHistory, StepPhysicalExam, StepScreening},
		{FlowStaff, StepPhysicalExam, StepDeclaration, StepMedicalHistory},
		{FlowStaff, StepDeclaration, StepCompleted, StepPhysicalExam},
		{FlowAdmin, StepPersonalData, StepMedicalHistory, StepPersonalData},
		{FlowAdmin, StepMedicalHistory, StepDeclaration, StepPersonalData},
		{FlowAdmin, StepDeclaration, StepCompleted, StepMedicalHistory},
	}
	for _, tt := range tests {
		t.Run(string(tt.flow)+"/"+string(tt.from), func(t *testing.T) {
			if got := tt.flow.Next(tt.from); got != tt.next {
				t.Errorf("Next = %s, want %s", got, tt.next)
			}
			if got := tt.flow.Previous(tt.from); got != tt.prev {
				t.Errorf("Previous = %s, want %s", got, tt.prev)
			}
		})
	}

	if FlowAdmin.Contains(StepScreening) || FlowAdmin.Contains(StepPhysicalExam) {
		t.Error("admin flow must skip screening and physical exam")
	}
}

func TestParseStep(t *testing.T) {
	for raw, want := range map[string]Step{
		"personal-data":   StepPersonalData,
		"medical_history": StepMedicalHistory,
		" physical-exam ": StepPhysicalExam,
	} {
		got, ok := ParseStep(raw)
		if !ok || got != want {
			t.Errorf("ParseStep(%q) = %s, %v", raw, got, ok)
		}
	}
	for _, raw := range []string{"", "completed", "cancelled", "blood-collection"} {
		if _, ok := ParseStep(raw); ok {
			t.Errorf("ParseStep(%q) should fail", raw)
		}
	}
}

func TestAdmit_MissingDonorNamesPriorStep(t *testing.T) {
	tests := []struct {
		flow Flow
		cmd  Command
		want Step
	}{
		{FlowStaff, SubmitScreening{}, StepPersonalData},
		{FlowStaff, SubmitMedicalHistory{Action: ActionApprove}, StepScreening},
		{FlowStaff, SubmitPhysicalExam{}, StepMedicalHistory},
		{FlowStaff, ConfirmDeclaration{}, StepPhysicalExam},
		{FlowAdmin, SubmitMedicalHistory{Action: ActionAdminComplete}, StepPersonalData},
		{"", SubmitScreening{}, StepPersonalData},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			err := Admit(Session{Flow: tt.flow}, tt.cmd)
			var missing *MissingDonorError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingDonorError, got %v", err)
			}
			if missing.RedirectStep != tt.want {
				t.Errorf("redirect step = %s, want %s", missing.RedirectStep, tt.want)
			}
			if !errors.Is(err, ErrMissingDonor) {
				t.Error("expected errors.Is ErrMissingDonor")
			}
		})
	}
}

func TestAdmit_Sequence(t *testing.T) {
	atScreening := Session{DonorID: 5, Flow: FlowStaff, Step: StepScreening}
	atExam := Session{DonorID: 5, Flow: FlowStaff, Step: StepPhysicalExam}
	deferredAtHistory := Session{DonorID: 5, Flow: FlowStaff, Step: StepDeferred, DeferredAt: StepMedicalHistory}

	tests := []struct {
		name string
		s    Session
		cmd  Command
		ok   bool
	}{
		{"current step", atScreening, SubmitScreening{}, true},
		{"step ahead", atScreening, SubmitMedicalHistory{Action: ActionApprove}, false},
		{"declaration ahead", atScreening, ConfirmDeclaration{}, false},
		{"re-edit earlier step", atExam, SubmitScreening{}, true},
		{"re-edit medical history", atExam, SubmitMedicalHistory{Action: ActionNext}, true},
		{"deferred re-edit", deferredAtHistory, SubmitMedicalHistory{Action: ActionApprove}, true},
		{"deferred cannot skip ahead", deferredAtHistory, SubmitPhysicalExam{}, false},
		{"completed", Session{DonorID: 5, Flow: FlowStaff, Step: StepCompleted}, SubmitScreening{}, false},
		{"cancel completed", Session{Step: StepCompleted}, Cancel{}, false},
		{"cancel in progress", atExam, Cancel{}, true},
		{"cancel without session", Session{}, Cancel{}, true},
		{"personal data while active", atScreening, SubmitPersonalData{}, false},
		{"personal data after cancel", Session{Step: StepCancelled}, SubmitPersonalData{}, true},
		{"admin flow has no screening", Session{DonorID: 5, Flow: FlowAdmin, Step: StepDeclaration}, SubmitScreening{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Admit(tt.s, tt.cmd)
			if tt.ok && err != nil {
				t.Fatalf("expected admit, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrOutOfSequence) {
				t.Fatalf("expected ErrOutOfSequence, got %v", err)
			}
		})
	}
}

func TestTransition_StaffFlow(t *testing.T) {
	s := Session{Referrer: "/dashboard/staff"}
	snap := &screening.Snapshot{ScreeningID: 3, BloodType: "O+"}

	steps := []struct {
		cmd  Command
		out  Outcome
		want Step
	}{
		{SubmitPersonalData{}, Outcome{DonorID: 9, Flow: FlowStaff, Advance: true, RegisteredName: "Juan Dela Cruz"}, StepScreening},
		{SubmitScreening{}, Outcome{Advance: true, ScreeningID: 3, Screening: snap}, StepMedicalHistory},
		{SubmitMedicalHistory{Action: ActionNext}, Outcome{MedicalHistoryID: 4}, StepMedicalHistory},
		{SubmitMedicalHistory{Action: ActionApprove}, Outcome{Advance: true, MedicalHistoryID: 4}, StepPhysicalExam},
		{SubmitPhysicalExam{}, Outcome{PhysicalExamID: 6}, StepPhysicalExam},
		{SubmitPhysicalExam{}, Outcome{Advance: true, PhysicalExamID: 6}, StepDeclaration},
	}
	for _, st := range steps {
		next, err := Transition(s, st.cmd, st.out)
		if err != nil {
			t.Fatalf("%s: %v", st.cmd.Name(), err)
		}
		if next.Step != st.want {
			t.Fatalf("%s: step = %s, want %s", st.cmd.Name(), next.Step, st.want)
		}
		s = next
	}

	want := Session{
		DonorID:              9,
		Step:                 StepDeclaration,
		Flow:                 FlowStaff,
		Referrer:             "/dashboard/staff",
		ScreeningID:          3,
		MedicalHistoryID:     4,
		PhysicalExamID:       6,
		TransferredScreening: snap,
		RegisteredName:       "Juan Dela Cruz",
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	decl := &Declaration{DonorID: 9, Date: "2025-03-14"}
	done, err := Transition(s, ConfirmDeclaration{}, Outcome{Declaration: decl})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	wantDone := Session{
		Referrer:             "/dashboard/staff",
		Step:                 StepCompleted,
		DeclarationCompleted: true,
		Declaration:          decl,
	}
	if diff := cmp.Diff(wantDone, done); diff != "" {
		t.Errorf("completed session mismatch (-want +got):\n%s", diff)
	}
}

func TestTransition_AdminFlow(t *testing.T) {
	s, err := Transition(Session{}, SubmitPersonalData{}, Outcome{DonorID: 2, Flow: FlowAdmin, Advance: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Step != StepMedicalHistory {
		t.Fatalf("admin should go straight to medical history, got %s", s.Step)
	}
	s, err = Transition(s, SubmitMedicalHistory{Action: ActionAdminComplete}, Outcome{Advance: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Step != StepDeclaration {
		t.Fatalf("admin_complete should reach declaration, got %s", s.Step)
	}
}

func TestTransition_ReEditDoesNotMoveCursorBack(t *testing.T) {
	s := Session{DonorID: 1, Flow: FlowStaff, Step: StepDeclaration}
	next, err := Transition(s, SubmitScreening{}, Outcome{Advance: true})
	if err != nil {
		t.Fatal(err)
	}
	if next.Step != StepDeclaration {
		t.Errorf("cursor moved to %s", next.Step)
	}
}

func TestTransition_DeferAndRecover(t *testing.T) {
	s := Session{DonorID: 1, Flow: FlowStaff, Step: StepMedicalHistory}

	deferred, err := Transition(s, SubmitMedicalHistory{Action: ActionDecline}, Outcome{Deferred: true})
	if err != nil {
		t.Fatal(err)
	}
	if deferred.Step != StepDeferred || deferred.DeferredAt != StepMedicalHistory {
		t.Fatalf("expected deferred at medical history, got %s/%s", deferred.Step, deferred.DeferredAt)
	}

	if _, err := Transition(deferred, SubmitPhysicalExam{}, Outcome{Advance: true}); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("deferred donor must not reach the exam, got %v", err)
	}

	approved, err := Transition(deferred, SubmitMedicalHistory{Action: ActionApprove}, Outcome{Advance: true})
	if err != nil {
		t.Fatal(err)
	}
	if approved.Step != StepPhysicalExam || approved.DeferredAt != "" {
		t.Errorf("expected physical exam after approval, got %s/%s", approved.Step, approved.DeferredAt)
	}
}

func TestTransition_EarlierEditKeepsDeferral(t *testing.T) {
	s := Session{DonorID: 1, Flow: FlowStaff, Step: StepDeferred, DeferredAt: StepPhysicalExam}

	for _, cmd := range []Command{SubmitScreening{}, SubmitMedicalHistory{Action: ActionApprove}} {
		next, err := Transition(s, cmd, Outcome{Advance: true})
		if err != nil {
			t.Fatalf("%s: %v", cmd.Name(), err)
		}
		if next.Step != StepDeferred || next.DeferredAt != StepPhysicalExam {
			t.Errorf("%s lifted the deferral: %s/%s", cmd.Name(), next.Step, next.DeferredAt)
		}
	}

	accepted, err := Transition(s, SubmitPhysicalExam{}, Outcome{Advance: true})
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Step != StepDeclaration || accepted.DeferredAt != "" {
		t.Errorf("exam verdict should lift the deferral, got %s/%s", accepted.Step, accepted.DeferredAt)
	}
}

func TestTransition_RescreenReturnsToScreening(t *testing.T) {
	tests := []struct {
		name string
		s    Session
		flow Flow
	}{
		{"staff at exam", Session{DonorID: 1, Flow: FlowStaff, Step: StepPhysicalExam}, FlowStaff},
		{"staff at declaration", Session{DonorID: 1, Flow: FlowStaff, Step: StepDeclaration}, FlowStaff},
		{"deferred at exam", Session{DonorID: 1, Flow: FlowStaff, Step: StepDeferred, DeferredAt: StepPhysicalExam}, FlowStaff},
		{"admin switches to staff flow", Session{DonorID: 1, Flow: FlowAdmin, Step: StepMedicalHistory}, FlowStaff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.s, SubmitMedicalHistory{Action: ActionApprove}, Outcome{Advance: true, Rescreen: true})
			if err != nil {
				t.Fatal(err)
			}
			if next.Step != StepScreening || next.DeferredAt != "" || next.Flow != tt.flow {
				t.Errorf("got %s/%s flow %s, want screening in %s", next.Step, next.DeferredAt, next.Flow, tt.flow)
			}
			if err := Admit(next, SubmitPhysicalExam{}); !errors.Is(err, ErrOutOfSequence) {
				t.Errorf("exam must wait for screening, got %v", err)
			}
		})
	}
}

func TestTransition_CancelKeepsOnlyReferrer(t *testing.T) {
	s := Session{
		DonorID:        42,
		Step:           StepScreening,
		Flow:           FlowStaff,
		Referrer:       "/dashboard/interviewer",
		RegisteredName: "Juan Dela Cruz",
	}
	next, err := Transition(s, Cancel{}, Outcome{})
	if err != nil {
		t.Fatal(err)
	}
	want := Session{Referrer: "/dashboard/interviewer", Step: StepCancelled}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestTransition_RejectsWithoutChange(t *testing.T) {
	s := Session{DonorID: 1, Flow: FlowStaff, Step: StepScreening}
	next, err := Transition(s, ConfirmDeclaration{}, Outcome{})
	if !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}
	if diff := cmp.Diff(s, next); diff != "" {
		t.Errorf("session changed on rejection:\n%s", diff)
	}
}
