package workflow

import (
	"fmt"

	"github.com/bloodbank/donorflow/internal/platform/auth"
)

// StaffRole narrows what a staff user (role 3) may do.
type StaffRole string

const (
	RoleInterviewer StaffRole = "interviewer"
	RolePhysician   StaffRole = "physician"
	RoleReviewer    StaffRole = "reviewer"
)

// Actor is the authenticated user driving a command.
type Actor struct {
	UserID    string
	RoleID    int
	StaffRole StaffRole
}

// ActorFromIdentity converts the identity stored by the auth middleware.
func ActorFromIdentity(id auth.Identity) Actor {
	return Actor{UserID: id.UserID, RoleID: id.RoleID, StaffRole: StaffRole(id.StaffRole)}
}

func (a Actor) IsAdmin() bool { return a.RoleID == auth.RoleAdmin }

// Flow is the registration flow this actor starts.
func (a Actor) Flow() Flow {
	if a.IsAdmin() {
		return FlowAdmin
	}
	return FlowStaff
}

// Validate rejects an actor without identity or with an unknown role, and a
// staff actor whose sub-role is missing or unknown. There is no fallback
// sub-role.
func (a Actor) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("%w: no user", ErrUnauthorized)
	}
	switch a.RoleID {
	case auth.RoleAdmin:
		return nil
	case auth.RoleStaff:
		if a.StaffRole == "" {
			return fmt.Errorf("%w: staff role not set", ErrForbidden)
		}
		if !anyStaff[a.StaffRole] {
			return fmt.Errorf("%w: unknown staff role %q", ErrForbidden, a.StaffRole)
		}
		return nil
	default:
		return fmt.Errorf("%w: role %d", ErrUnauthorized, a.RoleID)
	}
}

var anyStaff = map[StaffRole]bool{RoleInterviewer: true, RolePhysician: true, RoleReviewer: true}

// permissions lists the staff roles allowed to run each command. Admins may
// run everything.
var permissions = map[string]map[StaffRole]bool{
	"personal_data":                  {RoleInterviewer: true},
	"screening":                      {RoleInterviewer: true},
	"medical_history:approve":        anyStaff,
	"medical_history:decline":        anyStaff,
	"medical_history:next":           anyStaff,
	"medical_history:admin_complete": {},
	"physical_exam":                  {RolePhysician: true},
	"declaration":                    anyStaff,
	"cancel":                         anyStaff,
}

// Authorize checks that a may run cmd. a must already be valid.
func Authorize(a Actor, cmd Command) error {
	if a.IsAdmin() {
		return nil
	}
	allowed, ok := permissions[cmd.permission()]
	if !ok || !allowed[a.StaffRole] {
		return fmt.Errorf("%w: %s may not %s", ErrForbidden, a.StaffRole, cmd.Name())
	}
	return nil
}
