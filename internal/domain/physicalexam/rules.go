package physicalexam

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/bloodbank/donorflow/internal/platform/validate"
)

var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

const (
	MinPulse = 30
	MaxPulse = 200
	MinTemp  = 34.0
	MaxTemp  = 42.0
)

// FromForm reads and validates the physical examination form for donorID.
func FromForm(donorID int64, form url.Values) (*Exam, error) {
	get := func(k string) string { return strings.TrimSpace(form.Get(k)) }
	var issues validate.Issues

	e := &Exam{
		DonorID:       donorID,
		BloodPressure: get("blood_pressure"),
		GenAppearance: get("gen_appearance"),
		Skin:          get("skin"),
		HEENT:         get("heent"),
		HeartAndLungs: get("heart_and_lungs"),
		BloodBagType:  get("blood_bag_type"),
		Remarks:       get("remarks"),
	}
	if v := get("recommendation"); v != "" {
		e.Recommendation = &v
	}
	if v := get("reason"); v != "" {
		e.Reason = &v
	}

	switch {
	case e.BloodPressure == "":
		issues.Required("blood_pressure", "")
	case !bloodPressurePattern.MatchString(e.BloodPressure):
		issues.Invalid("blood_pressure", "blood pressure must look like 120/80")
	}

	if raw := get("pulse_rate"); raw == "" {
		issues.Required("pulse_rate", "")
	} else if n, err := strconv.Atoi(raw); err != nil || n < MinPulse || n > MaxPulse {
		issues.Invalid("pulse_rate", "pulse rate must be between 30 and 200 bpm")
	} else {
		e.PulseRate = n
	}

	if raw := get("body_temp"); raw == "" {
		issues.Required("body_temp", "")
	} else if f, err := strconv.ParseFloat(raw, 64); err != nil || math.IsNaN(f) || f < MinTemp || f > MaxTemp {
		issues.Invalid("body_temp", "body temperature must be between 34.0 and 42.0 °C")
	} else {
		e.BodyTemp = f
	}

	if e.Remarks == "" {
		e.Remarks = RemarksPending
	} else if !validRemarks[e.Remarks] {
		issues.Invalid("remarks", "invalid remarks: "+e.Remarks)
	}
	if Deferred(e.Remarks) && e.Reason == nil {
		issues.Required("reason", "")
	}

	if err := issues.Err(); err != nil {
		return nil, err
	}
	return e, nil
}
