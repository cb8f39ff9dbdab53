package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/domain/eligibility"
	"github.com/bloodbank/donorflow/internal/platform/events"
)

type fakeResetter struct {
	changed bool
	err     error
	calls   []int64
}

func (f *fakeResetter) Reset(_ context.Context, donorID int64) (bool, error) {
	f.calls = append(f.calls, donorID)
	return f.changed, f.err
}

func TestDownstreamResetter_ReportsEachPart(t *testing.T) {
	sc := &fakeResetter{changed: true}
	pe := &fakeResetter{changed: false}
	bc := &fakeResetter{changed: true}
	r := NewDownstreamResetter(sc, pe, bc, zerolog.Nop())

	report, err := r.Reset(context.Background(), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ResetReport{DonorID: 12, Screening: true, BloodCollection: true}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	for _, f := range []*fakeResetter{sc, pe, bc} {
		if len(f.calls) != 1 || f.calls[0] != 12 {
			t.Errorf("expected one call for donor 12, got %v", f.calls)
		}
	}
}

func TestDownstreamResetter_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("store down")
	sc := &fakeResetter{err: boom}
	pe := &fakeResetter{changed: true}
	r := NewDownstreamResetter(sc, pe, nil, zerolog.Nop())

	report, err := r.Reset(context.Background(), 3)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if report.Screening || !report.PhysicalExam {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestDownstreamResetter_HandleViaBus(t *testing.T) {
	sc := &fakeResetter{changed: true}
	r := NewDownstreamResetter(sc, nil, nil, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	r.Subscribe(bus)

	if got := bus.Subscribers(EventMedicalHistoryRevised); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}
	err := bus.Publish(context.Background(), MedicalHistoryRevised{DonorID: 4, RevisedAt: time.Now()})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sc.calls) != 1 || sc.calls[0] != 4 {
		t.Errorf("expected reset for donor 4, got %v", sc.calls)
	}

	if err := r.Handle(context.Background(), StepCompletedEvent{DonorID: 4}); err == nil {
		t.Error("expected error for unexpected event type")
	}
}

func TestDownstreamResetter_DonorWithoutRecords(t *testing.T) {
	h := newHarness(t)
	h.seedDonor(77)
	r := NewDownstreamResetter(h.screenings, h.physicalExams, ResetterFunc(h.eligibility.ResetCollection), zerolog.Nop())

	report, err := r.Reset(h.ctx, 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Empty() {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestDownstreamResetter_KeepsSettledRecords(t *testing.T) {
	h := newHarness(t)
	h.seedDonor(5)
	h.insert("physical_examination", map[string]any{"donor_id": 5, "remarks": "Accepted"})
	h.insert("eligibility", map[string]any{"donor_id": 5, "status": eligibility.StatusApproved})
	r := NewDownstreamResetter(h.screenings, h.physicalExams, ResetterFunc(h.eligibility.ResetCollection), zerolog.Nop())

	report, err := r.Reset(h.ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Empty() {
		t.Errorf("settled records should be kept, got %+v", report)
	}
}

func TestEvents_DonorEvent(t *testing.T) {
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	var ev events.DonorEvent = MedicalHistoryRevised{DonorID: 8, RevisedAt: at}
	if ev.EventName() != "medical_history.revised" || ev.EventDonorID() != 8 || !ev.OccurredAt().Equal(at) {
		t.Errorf("unexpected event %+v", ev)
	}
	ev = StepCompletedEvent{DonorID: 8, At: at}
	if ev.EventName() != "workflow.step_completed" || ev.EventDonorID() != 8 {
		t.Errorf("unexpected event %+v", ev)
	}
}
