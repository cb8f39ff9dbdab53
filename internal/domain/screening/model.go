package screening

import (
	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

const (
	StatusPending = "pending"
	StatusPassed  = "passed"
)

// Vital limits. Values outside these bounds defer the donor.
const (
	MinWeightKg        = 50.0
	MaxWeightKg        = 120.0
	MinSpecificGravity = 12.5
	MaxSpecificGravity = 18.0
)

// Screening maps to the screening_form table. The latest row per donor is the
// authoritative one. Optional fields are pointers so a hidden field is written
// as null instead of leaving a stale value behind.
type Screening struct {
	ScreeningID           int64                `json:"screening_id,omitempty"`
	DonorFormID           int64                `json:"donor_form_id"`
	BodyWeight            float64              `json:"body_weight"`
	SpecificGravity       float64              `json:"specific_gravity"`
	BloodType             string               `json:"blood_type,omitempty"`
	DonationType          string               `json:"donation_type"`
	HasPreviousDonation   bool                 `json:"has_previous_donation"`
	RedCrossDonations     int                  `json:"red_cross_donations"`
	HospitalDonations     int                  `json:"hospital_donations"`
	LastRCDonationPlace   *string              `json:"last_rc_donation_place"`
	LastRCDonationDate    *string              `json:"last_rc_donation_date"`
	LastHospDonationPlace *string              `json:"last_hosp_donation_place"`
	LastHospDonationDate  *string              `json:"last_hosp_donation_date"`
	InterviewDate         string               `json:"interview_date,omitempty"`
	InterviewerID         int64                `json:"interviewer_id,omitempty"`
	Staff                 string               `json:"staff,omitempty"`
	MobileLocation        *string              `json:"mobile_location"`
	MobileOrganizer       *string              `json:"mobile_organizer"`
	PatientName           *string              `json:"patient_name"`
	Hospital              *string              `json:"hospital"`
	PatientBloodType      *string              `json:"patient_blood_type"`
	ComponentType         *string              `json:"component_type"`
	UnitsNeeded           *int                 `json:"units_needed"`
	Status                string               `json:"status,omitempty"`
	CreatedAt             *datastore.Timestamp `json:"created_at,omitempty"`
	UpdatedAt             *datastore.Timestamp `json:"updated_at,omitempty"`
}

// Passed reports whether the screening cleared the donor for medical history.
func (s *Screening) Passed() bool { return s.Status == StatusPassed }

// Snapshot is the part of a screening carried into the declaration step.
type Snapshot struct {
	ScreeningID     int64   `json:"screening_id"`
	BodyWeight      float64 `json:"body_weight"`
	SpecificGravity float64 `json:"specific_gravity"`
	BloodType       string  `json:"blood_type,omitempty"`
	DonationType    string  `json:"donation_type"`
	InterviewDate   string  `json:"interview_date,omitempty"`
	Staff           string  `json:"staff,omitempty"`
}

func (s *Screening) Snapshot() *Snapshot {
	return &Snapshot{
		ScreeningID:     s.ScreeningID,
		BodyWeight:      s.BodyWeight,
		SpecificGravity: s.SpecificGravity,
		BloodType:       s.BloodType,
		DonationType:    s.DonationType,
		InterviewDate:   s.InterviewDate,
		Staff:           s.Staff,
	}
}
