package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/bloodbank/donorflow/internal/platform/auth"
)

var (
	admin       = Actor{UserID: "1", RoleID: auth.RoleAdmin}
	interviewer = Actor{UserID: "7", RoleID: auth.RoleStaff, StaffRole: RoleInterviewer}
	physician   = Actor{UserID: "8", RoleID: auth.RoleStaff, StaffRole: RolePhysician}
	reviewer    = Actor{UserID: "9", RoleID: auth.RoleStaff, StaffRole: RoleReviewer}
)

func TestActor_Validate(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  error
	}{
		{"admin", admin, nil},
		{"interviewer", interviewer, nil},
		{"reviewer", reviewer, nil},
		{"no user", Actor{RoleID: auth.RoleAdmin}, ErrUnauthorized},
		{"donor role", Actor{UserID: "3", RoleID: 2}, ErrUnauthorized},
		{"no role", Actor{UserID: "3"}, ErrUnauthorized},
		{"staff without sub-role", Actor{UserID: "3", RoleID: auth.RoleStaff}, ErrForbidden},
		{"staff with unknown sub-role", Actor{UserID: "3", RoleID: auth.RoleStaff, StaffRole: "nurse"}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.actor.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	commands := []Command{
		SubmitPersonalData{},
		SubmitScreening{},
		SubmitMedicalHistory{Action: ActionApprove},
		SubmitMedicalHistory{Action: ActionDecline},
		SubmitMedicalHistory{Action: ActionNext},
		SubmitMedicalHistory{Action: ActionAdminComplete},
		SubmitPhysicalExam{},
		ConfirmDeclaration{},
		Cancel{},
	}
	allowed := map[StaffRole][]bool{
		RoleInterviewer: {true, true, true, true, true, false, false, true, true},
		RolePhysician:   {false, false, true, true, true, false, true, true, true},
		RoleReviewer:    {false, false, true, true, true, false, false, true, true},
	}

	for _, cmd := range commands {
		if err := Authorize(admin, cmd); err != nil {
			t.Errorf("admin %s: %v", cmd.Name(), err)
		}
	}
	for _, actor := range []Actor{interviewer, physician, reviewer} {
		for i, cmd := range commands {
			err := Authorize(actor, cmd)
			if allowed[actor.StaffRole][i] {
				if err != nil {
					t.Errorf("%s %s: unexpected %v", actor.StaffRole, cmd.Name(), err)
				}
				continue
			}
			if !errors.Is(err, ErrForbidden) {
				t.Errorf("%s %s: expected ErrForbidden, got %v", actor.StaffRole, cmd.Name(), err)
			}
		}
	}
}

func TestActor_Flow(t *testing.T) {
	if admin.Flow() != FlowAdmin {
		t.Error("admins register through the abbreviated flow")
	}
	if physician.Flow() != FlowStaff {
		t.Error("staff register through the full flow")
	}
}

func TestActorFromIdentity(t *testing.T) {
	got := ActorFromIdentity(auth.Identity{UserID: "8", RoleID: auth.RoleStaff, StaffRole: "physician"})
	if got != physician {
		t.Errorf("unexpected actor %+v", got)
	}
}

func TestParseMedicalHistoryAction(t *testing.T) {
	for _, raw := range []string{"approve", "decline", "next", "admin_complete", " approve "} {
		if _, err := ParseMedicalHistoryAction(raw); err != nil {
			t.Errorf("ParseMedicalHistoryAction(%q): %v", raw, err)
		}
	}
	_, err := ParseMedicalHistoryAction("escalate")
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if !strings.Contains(err.Error(), "escalate") {
		t.Errorf("error should name the action, got %q", err)
	}
}

func TestResolveMedicalHistoryAction(t *testing.T) {
	got, err := ResolveMedicalHistoryAction("", admin)
	if err != nil || got != ActionAdminComplete {
		t.Errorf("admin without action = %q, %v; want admin_complete", got, err)
	}
	got, err = ResolveMedicalHistoryAction("approve", admin)
	if err != nil || got != ActionApprove {
		t.Errorf("admin approve = %q, %v", got, err)
	}
	if _, err := ResolveMedicalHistoryAction("", interviewer); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("staff without action should be rejected, got %v", err)
	}
}
