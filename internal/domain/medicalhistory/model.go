package medicalhistory

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

// Approval states of a medical history.
const (
	ApprovalPending  = "Pending"
	ApprovalApproved = "Approved"
	ApprovalDeclined = "Declined"

	legacyNotApproved = "Not Approved"
)

// NormalizeApproval maps stored values onto the three approval states. The
// legacy "Not Approved" reads as Declined and blanks as Pending.
func NormalizeApproval(v string) string {
	switch strings.TrimSpace(v) {
	case ApprovalApproved:
		return ApprovalApproved
	case ApprovalDeclined, legacyNotApproved:
		return ApprovalDeclined
	default:
		return ApprovalPending
	}
}

// Final reports whether approval is a verdict rather than Pending.
func Final(approval string) bool {
	a := NormalizeApproval(approval)
	return a == ApprovalApproved || a == ApprovalDeclined
}

// Record is a row of medical_history. The questionnaire columns are held in
// Answers and Remarks keyed by column name.
type Record struct {
	MedicalHistoryID int64
	DonorID          int64
	Answers          map[string]bool
	Remarks          map[string]string
	Interviewer      string
	MedicalApproval  string
	NeedsReview      bool
	IsAdmin          bool
	CreatedAt        *datastore.Timestamp
	UpdatedAt        *datastore.Timestamp
}

// Answer returns the answer to question n, or nil when unanswered.
func (r *Record) Answer(n int) *bool {
	if r == nil {
		return nil
	}
	col, ok := ColumnFor(n)
	if !ok {
		return nil
	}
	v, ok := r.Answers[col]
	if !ok {
		return nil
	}
	return &v
}

// Remark returns the remarks recorded for question n.
func (r *Record) Remark(n int) string {
	if r == nil || n < 1 || n > QuestionCount {
		return ""
	}
	return r.Remarks[Questions[n-1].Column]
}

type recordHeader struct {
	MedicalHistoryID int64                `json:"medical_history_id,omitempty"`
	DonorID          int64                `json:"donor_id"`
	Interviewer      *string              `json:"interviewer"`
	MedicalApproval  *string              `json:"medical_approval"`
	NeedsReview      *bool                `json:"needs_review"`
	IsAdmin          *bool                `json:"is_admin"`
	CreatedAt        *datastore.Timestamp `json:"created_at,omitempty"`
	UpdatedAt        *datastore.Timestamp `json:"updated_at,omitempty"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var h recordHeader
	if err := json.Unmarshal(b, &h); err != nil {
		return fmt.Errorf("decode medical history: %w", err)
	}
	var cols map[string]json.RawMessage
	if err := json.Unmarshal(b, &cols); err != nil {
		return fmt.Errorf("decode medical history: %w", err)
	}

	*r = Record{
		MedicalHistoryID: h.MedicalHistoryID,
		DonorID:          h.DonorID,
		Answers:          make(map[string]bool),
		Remarks:          make(map[string]string),
		MedicalApproval:  ApprovalPending,
		CreatedAt:        h.CreatedAt,
		UpdatedAt:        h.UpdatedAt,
	}
	if h.Interviewer != nil {
		r.Interviewer = *h.Interviewer
	}
	if h.MedicalApproval != nil {
		r.MedicalApproval = NormalizeApproval(*h.MedicalApproval)
	}
	if h.NeedsReview != nil {
		r.NeedsReview = *h.NeedsReview
	}
	if h.IsAdmin != nil {
		r.IsAdmin = *h.IsAdmin
	}

	for _, q := range Questions {
		if raw, ok := cols[q.Column]; ok {
			var v *bool
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode %s: %w", q.Column, err)
			}
			if v != nil {
				r.Answers[q.Column] = *v
			}
		}
		if raw, ok := cols[q.RemarksColumn()]; ok {
			var s *string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("decode %s: %w", q.RemarksColumn(), err)
			}
			if s != nil {
				r.Remarks[q.Column] = *s
			}
		}
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"donor_id":         r.DonorID,
		"interviewer":      r.Interviewer,
		"medical_approval": r.MedicalApproval,
		"needs_review":     r.NeedsReview,
		"is_admin":         r.IsAdmin,
	}
	if r.MedicalHistoryID != 0 {
		out["medical_history_id"] = r.MedicalHistoryID
	}
	if r.CreatedAt != nil {
		out["created_at"] = r.CreatedAt
	}
	if r.UpdatedAt != nil {
		out["updated_at"] = r.UpdatedAt
	}
	for col, v := range r.Answers {
		out[col] = v
	}
	for col, v := range r.Remarks {
		out[col+"_remarks"] = v
	}
	return json.Marshal(out)
}

// Patch is a partial medical_history row keyed by column.
type Patch map[string]any

// ParseAnswers reads q1..q37 and their remarks from a submitted form. "Yes"
// is true, any other submitted value false, and an absent question is left
// out. Remarks of "None" or blank are left out.
func ParseAnswers(form url.Values) Patch {
	p := Patch{}
	for _, q := range Questions {
		key := "q" + strconv.Itoa(q.Number)
		if vals, ok := form[key]; ok && len(vals) > 0 {
			p[q.Column] = vals[0] == "Yes"
		}
		if remarks := strings.TrimSpace(form.Get(key + "_remarks")); remarks != "" && remarks != "None" {
			p[q.RemarksColumn()] = remarks
		}
	}
	return p
}

// EnforceConsistency clears needs_review when the approval that will be
// stored is a verdict. stored is the approval already on record, used when the
// patch does not set one.
func (p Patch) EnforceConsistency(stored string) {
	approval := stored
	if v, ok := p["medical_approval"].(string); ok {
		approval = v
	}
	if Final(approval) {
		p["needs_review"] = false
	}
}
