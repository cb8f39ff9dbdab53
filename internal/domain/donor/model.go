package donor

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

const (
	DefaultNationality  = "Filipino"
	RegistrationChannel = "PRC Portal"
	BirthdateLayout     = "2006-01-02"
)

// Donor maps to the donor_form table. Identity fields are written once at
// registration and never updated.
type Donor struct {
	DonorID             int64                `json:"donor_id,omitempty"`
	Surname             string               `json:"surname"`
	FirstName           string               `json:"first_name"`
	MiddleName          string               `json:"middle_name,omitempty"`
	Birthdate           string               `json:"birthdate"`
	Age                 int                  `json:"age,omitempty"`
	Sex                 string               `json:"sex"`
	CivilStatus         string               `json:"civil_status,omitempty"`
	PermanentAddress    string               `json:"permanent_address,omitempty"`
	OfficeAddress       string               `json:"office_address,omitempty"`
	Nationality         string               `json:"nationality,omitempty"`
	Religion            string               `json:"religion,omitempty"`
	Education           string               `json:"education,omitempty"`
	Occupation          string               `json:"occupation,omitempty"`
	Mobile              string               `json:"mobile,omitempty"`
	Telephone           string               `json:"telephone,omitempty"`
	Email               string               `json:"email,omitempty"`
	PRCDonorNumber      string               `json:"prc_donor_number,omitempty"`
	DOHBarcode          string               `json:"doh_nnbnets_barcode,omitempty"`
	RegistrationChannel string               `json:"registration_channel,omitempty"`
	CreatedAt           *datastore.Timestamp `json:"created_at,omitempty"`
}

// FullName is "First Middle Surname" with blanks skipped.
func (d *Donor) FullName() string {
	return joinNonEmpty(" ", d.FirstName, d.MiddleName, d.Surname)
}

// addressParts are the form fields composed into permanent_address, in order.
var addressParts = []string{"address_no", "street", "barangay", "town_municipality", "province_city", "zip_code"}

// FromForm reads the personal-data form. A posted permanent_address wins over
// the split address fields.
func FromForm(form url.Values) *Donor {
	get := func(k string) string { return strings.TrimSpace(form.Get(k)) }

	d := &Donor{
		Surname:          get("surname"),
		FirstName:        get("first_name"),
		MiddleName:       get("middle_name"),
		Birthdate:        get("birthdate"),
		Sex:              get("sex"),
		CivilStatus:      get("civil_status"),
		PermanentAddress: get("permanent_address"),
		OfficeAddress:    get("office_address"),
		Nationality:      get("nationality"),
		Religion:         get("religion"),
		Education:        get("education"),
		Occupation:       get("occupation"),
		Mobile:           get("mobile"),
		Telephone:        get("telephone"),
		Email:            get("email"),
	}
	if age, err := strconv.Atoi(get("age")); err == nil && age > 0 {
		d.Age = age
	}
	if d.PermanentAddress == "" {
		parts := make([]string, 0, len(addressParts))
		for _, k := range addressParts {
			parts = append(parts, get(k))
		}
		d.PermanentAddress = joinNonEmpty(", ", parts...)
	}
	return d
}

// AgeOn returns the completed years between birth and now.
func AgeOn(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
