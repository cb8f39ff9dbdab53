package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/bloodbank/donorflow/internal/domain/screening"
	"github.com/bloodbank/donorflow/internal/platform/session"
)

// Session is the per-browser workflow state. It is loaded at the start of a
// request, passed through the engine by value and saved at the end.
type Session struct {
	DonorID  int64  `json:"donor_id,omitempty"`
	Step     Step   `json:"step,omitempty"`
	Flow     Flow   `json:"flow,omitempty"`
	Referrer string `json:"referrer,omitempty"`

	// DeferredAt is the step that deferred the donor when Step is deferred.
	DeferredAt Step `json:"deferred_at,omitempty"`

	ScreeningID      int64 `json:"screening_id,omitempty"`
	MedicalHistoryID int64 `json:"medical_history_id,omitempty"`
	PhysicalExamID   int64 `json:"physical_exam_id,omitempty"`

	TransferredScreening *screening.Snapshot `json:"transferred_screening,omitempty"`
	RegisteredName       string              `json:"donor_registered_name,omitempty"`

	DeclarationCompleted bool         `json:"declaration_completed,omitempty"`
	Declaration          *Declaration `json:"declaration,omitempty"`
}

// Declaration is what the confirm step records for the printed form.
type Declaration struct {
	DonorID     int64               `json:"donor_id"`
	DonorName   string              `json:"donor_name,omitempty"`
	Date        string              `json:"date"`
	Interviewer string              `json:"interviewer,omitempty"`
	Screening   *screening.Snapshot `json:"screening,omitempty"`
}

// Active reports whether a registration is in progress.
func (s Session) Active() bool {
	return s.DonorID != 0 && !s.Step.Terminal()
}

// ClearRegistration drops every registration key except the referrer.
func (s Session) ClearRegistration() Session {
	return Session{Referrer: s.Referrer}
}

// SessionStore adapts a session.Store to Session values.
type SessionStore struct {
	store session.Store
}

func NewSessionStore(store session.Store) *SessionStore {
	return &SessionStore{store: store}
}

// Load returns the stored session, or an empty one for a new id.
func (s *SessionStore) Load(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.store.Get(ctx, id, &sess)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return Session{}, nil
	case err != nil:
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Save(ctx context.Context, id string, sess Session) error {
	if err := s.store.Set(ctx, id, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, id string) error {
	return s.store.Clear(ctx, id)
}
