package workflow

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/domain/donor"
	"github.com/bloodbank/donorflow/internal/domain/eligibility"
	"github.com/bloodbank/donorflow/internal/domain/medicalhistory"
	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/domain/screening"
	"github.com/bloodbank/donorflow/internal/domain/staff"
	"github.com/bloodbank/donorflow/internal/platform/datastore"
	"github.com/bloodbank/donorflow/internal/platform/events"
)

// harness wires real services over an in-memory store with a fixed clock.
type harness struct {
	t     *testing.T
	ctx   context.Context
	now   time.Time
	store *datastore.Memory
	bus   *events.Bus

	donors         *donor.Service
	screenings     *screening.Service
	medicalHistory *medicalhistory.Service
	physicalExams  *physicalexam.Service
	eligibility    *eligibility.Service

	loader *Loader
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		now:   time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		store: datastore.NewMemory(),
	}
	clock := func() time.Time { return h.now }
	logger := zerolog.Nop()

	h.store.SetClock(clock)
	h.bus = events.NewBus(logger)
	h.donors = donor.NewService(donor.NewRepository(h.store))
	h.donors.SetClock(clock)
	h.screenings = screening.NewService(screening.NewRepository(h.store), logger)
	h.screenings.SetClock(clock)
	h.medicalHistory = medicalhistory.NewService(medicalhistory.NewRepository(h.store), logger)
	h.medicalHistory.SetClock(clock)
	h.physicalExams = physicalexam.NewService(physicalexam.NewRepository(h.store), logger)
	h.physicalExams.SetClock(clock)
	h.eligibility = eligibility.NewService(h.store, logger)
	h.eligibility.SetClock(clock)

	NewDownstreamResetter(h.screenings, h.physicalExams, ResetterFunc(h.eligibility.ResetCollection), logger).Subscribe(h.bus)

	h.loader = NewLoader(h.donors, h.screenings, h.medicalHistory, h.physicalExams, h.eligibility, logger)
	h.engine = NewEngine(Deps{
		Donors:          h.donors,
		Screenings:      h.screenings,
		MedicalHistory:  h.medicalHistory,
		PhysicalExams:   h.physicalExams,
		Eligibility:     h.eligibility,
		Staff:           staff.NewDirectory(h.store),
		Bus:             h.bus,
		Loader:          h.loader,
		DefaultReferrer: "/dashboard",
	}, logger)
	h.engine.SetClock(clock)

	h.insert(datastore.TableUsers, map[string]any{
		"user_id": 7, "first_name": "Ana", "surname": "Reyes", "office_address": "PRC Manila Chapter",
	})
	h.insert(datastore.TableUsers, map[string]any{
		"user_id": 8, "first_name": "Jose", "surname": "Rizal", "office_address": "PRC Manila Chapter",
	})
	return h
}

func (h *harness) insert(table string, row map[string]any) {
	h.t.Helper()
	if err := h.store.Insert(h.ctx, table, row, nil); err != nil {
		h.t.Fatalf("seed %s: %v", table, err)
	}
}

func (h *harness) seedDonor(id int64) {
	h.insert(datastore.TableDonor, map[string]any{
		"donor_id": id, "surname": "Santos", "first_name": "Maria", "birthdate": "1988-01-02", "sex": "Female",
	})
}

func (h *harness) seedPassedScreening(donorID int64) {
	h.insert(datastore.TableScreening, map[string]any{
		"donor_form_id": donorID, "body_weight": 60, "specific_gravity": 13.5, "blood_type": "O+",
		"donation_type": "walk-in", "status": screening.StatusPassed, "interview_date": "2025-03-10",
	})
}

func (h *harness) rows(table string) []map[string]any {
	return h.store.Rows(table)
}

// handle runs cmd and fails the test on error.
func (h *harness) handle(a Actor, s Session, cmd Command) (*Result, Session) {
	h.t.Helper()
	res, next, err := h.engine.Handle(h.ctx, a, s, cmd)
	if err != nil {
		h.t.Fatalf("%s: %v", cmd.Name(), err)
	}
	return res, next
}

func personalForm() url.Values {
	return url.Values{
		"surname":    {"Dela Cruz"},
		"first_name": {"Juan"},
		"birthdate":  {"1990-06-20"},
		"sex":        {"Male"},
		"street":     {"Rizal Ave"},
		"barangay":   {"San Roque"},
	}
}

func screeningForm(weight string) url.Values {
	return url.Values{
		"body-wt":       {weight},
		"sp-gr":         {"13.5"},
		"blood-type":    {"O+"},
		"donation-type": {"walk-in"},
	}
}

func historyForm() url.Values {
	return url.Values{
		"q1":         {"Yes"},
		"q2":         {"No"},
		"q7":         {"No"},
		"q7_remarks": {"None"},
	}
}

func examForm(remarks string) url.Values {
	f := url.Values{
		"blood_pressure": {"120/80"},
		"pulse_rate":     {"72"},
		"body_temp":      {"36.6"},
		"remarks":        {remarks},
	}
	if physicalexam.Deferred(remarks) {
		f.Set("reason", "Low hemoglobin")
	}
	return f
}
