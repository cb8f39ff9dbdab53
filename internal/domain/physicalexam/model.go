package physicalexam

import (
	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

// Physician verdicts stored in remarks.
const (
	RemarksPending             = "Pending"
	RemarksAccepted            = "Accepted"
	RemarksTemporarilyDeferred = "Temporarily Deferred"
	RemarksPermanentlyDeferred = "Permanently Deferred"
	RemarksRefused             = "Refused"
)

// RemarksOptions is the physician's choice list in display order.
var RemarksOptions = []string{
	RemarksPending, RemarksAccepted, RemarksTemporarilyDeferred, RemarksPermanentlyDeferred, RemarksRefused,
}

var validRemarks = map[string]bool{
	RemarksPending:             true,
	RemarksAccepted:            true,
	RemarksTemporarilyDeferred: true,
	RemarksPermanentlyDeferred: true,
	RemarksRefused:             true,
}

// Deferred reports whether remarks stop the donor from donating.
func Deferred(remarks string) bool {
	return remarks == RemarksTemporarilyDeferred || remarks == RemarksPermanentlyDeferred || remarks == RemarksRefused
}

// Exam maps to the physical_examination table.
type Exam struct {
	PhysicalExamID int64                `json:"physical_exam_id,omitempty"`
	DonorID        int64                `json:"donor_id"`
	BloodPressure  string               `json:"blood_pressure"`
	PulseRate      int                  `json:"pulse_rate"`
	BodyTemp       float64              `json:"body_temp"`
	GenAppearance  string               `json:"gen_appearance"`
	Skin           string               `json:"skin"`
	HEENT          string               `json:"heent"`
	HeartAndLungs  string               `json:"heart_and_lungs"`
	BloodBagType   string               `json:"blood_bag_type,omitempty"`
	Recommendation *string              `json:"recommendation"`
	Remarks        string               `json:"remarks"`
	Reason         *string              `json:"reason"`
	Physician      string               `json:"physician,omitempty"`
	NeedsReview    bool                 `json:"needs_review"`
	CreatedAt      *datastore.Timestamp `json:"created_at,omitempty"`
	UpdatedAt      *datastore.Timestamp `json:"updated_at,omitempty"`
}

// Editable reports whether the physician may still change the exam.
func (e *Exam) Editable() bool {
	return e == nil || e.Remarks == "" || e.Remarks == RemarksPending
}
