package screening

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/bloodbank/donorflow/internal/platform/validate"
)

// Form options in display order.
var (
	DonationTypeOptions = []string{
		"in-house", "walk-in", "replacement", "patient-directed",
		"mobile", "mobile-walk-in", "mobile-replacement", "mobile-patient-directed",
	}
	BloodTypeOptions = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}
)

var donationTypes = map[string]bool{
	"in-house": true, "walk-in": true, "replacement": true, "patient-directed": true,
	"mobile": true, "mobile-walk-in": true, "mobile-replacement": true, "mobile-patient-directed": true,
}

var bloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"O+": true, "O-": true, "AB+": true, "AB-": true,
}

// Deferral warnings shown to the interviewer.
const (
	WarnMinWeight       = "Minimum eligible weight is 50 kg. Donation must be deferred for donor safety."
	WarnMaxWeight       = "Maximum eligible weight is 120 kg. Donation must be deferred for donor safety."
	WarnSpecificGravity = "Specific gravity should be between 12.5-18.0 g/dL for donor safety. Values outside this range require deferral."
)

// NormalizeDonationType maps a submitted type onto the stored enumeration.
// Unknown mobile variants become "mobile", anything else unknown "walk-in".
func NormalizeDonationType(t string) (string, error) {
	t = strings.TrimSpace(t)
	switch {
	case t == "":
		return "", fmt.Errorf("donation type is required")
	case donationTypes[t]:
		return t, nil
	case strings.HasPrefix(t, "mobile"):
		return "mobile", nil
	default:
		return "walk-in", nil
	}
}

func IsMobile(donationType string) bool {
	return strings.HasPrefix(donationType, "mobile")
}

func IsPatientDirected(donationType string) bool {
	return donationType == "patient-directed" || donationType == "mobile-patient-directed"
}

// CheckVitals returns one deferral warning per out-of-range vital.
func CheckVitals(weight, specificGravity float64) []validate.Issue {
	var issues validate.Issues
	switch {
	case weight < MinWeightKg:
		issues.Warn("body-wt", WarnMinWeight)
	case weight > MaxWeightKg:
		issues.Warn("body-wt", WarnMaxWeight)
	}
	if specificGravity < MinSpecificGravity || specificGravity > MaxSpecificGravity {
		issues.Warn("sp-gr", WarnSpecificGravity)
	}
	return issues
}

// FromForm reads the screening form into a record for donorID. Fields hidden
// by the selected donation type are left nil. Malformed or missing values are
// reported as errors; vitals are not range-checked here.
func FromForm(donorID int64, form url.Values) (*Screening, error) {
	get := func(k string) string { return strings.TrimSpace(form.Get(k)) }
	var issues validate.Issues

	s := &Screening{DonorFormID: donorID}

	s.BodyWeight = parseFloat(&issues, "body-wt", get("body-wt"))
	s.SpecificGravity = parseFloat(&issues, "sp-gr", get("sp-gr"))

	s.BloodType = get("blood-type")
	if s.BloodType != "" && !bloodTypes[s.BloodType] {
		issues.Invalid("blood-type", fmt.Sprintf("invalid blood type: %s", s.BloodType))
	}

	dt, err := NormalizeDonationType(get("donation-type"))
	if err != nil {
		issues.Add(validate.SeverityError, validate.IssueRequired, "donation-type", err.Error())
	}
	s.DonationType = dt

	if strings.EqualFold(get("history"), "yes") {
		s.HasPreviousDonation = true
		s.RedCrossDonations = atoiOrZero(get("red-cross"))
		s.HospitalDonations = atoiOrZero(get("hospital-history"))
		s.LastRCDonationPlace = optional(get("last-rc-donation-place"))
		s.LastRCDonationDate = optional(get("last-rc-donation-date"))
		s.LastHospDonationPlace = optional(get("last-hosp-donation-place"))
		s.LastHospDonationDate = optional(get("last-hosp-donation-date"))
	}

	if IsMobile(dt) {
		s.MobileLocation = optional(get("mobile-place"))
		s.MobileOrganizer = optional(get("mobile-organizer"))
	}

	if IsPatientDirected(dt) {
		s.PatientName = optional(get("patient-name"))
		s.Hospital = optional(get("hospital"))
		s.PatientBloodType = optional(get("blood-type-patient"))
		s.ComponentType = optional(get("wb-component"))

		issues.Required("patient-name", get("patient-name"))
		issues.Required("hospital", get("hospital"))
		issues.Required("blood-type-patient", get("blood-type-patient"))
		if pbt := get("blood-type-patient"); pbt != "" && !bloodTypes[pbt] {
			issues.Invalid("blood-type-patient", fmt.Sprintf("invalid blood type: %s", pbt))
		}
		units, err := strconv.Atoi(get("no-units"))
		if err != nil || units < 1 {
			issues.Invalid("no-units", "at least one unit is required for a patient-directed donation")
		} else {
			s.UnitsNeeded = &units
		}
	}

	if err := issues.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseFloat(issues *validate.Issues, field, raw string) float64 {
	if raw == "" {
		issues.Required(field, raw)
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		issues.Invalid(field, field+" must be a number")
		return 0
	}
	return v
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
