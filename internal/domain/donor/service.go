package donor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bloodbank/donorflow/internal/platform/validate"
)

var (
	ErrNotFound  = errors.New("donor not found")
	ErrDuplicate = errors.New("a donor with the same name and birthdate is already registered")
)

type Service struct {
	repo Repository
	now  func() time.Time
	intn func(n int) int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, intn: rand.IntN}
}

// SetClock replaces the clock used for age and donor numbers.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Validate checks the required identity fields and the birthdate.
func Validate(d *Donor, now time.Time) error {
	var issues validate.Issues
	issues.Required("surname", d.Surname)
	issues.Required("first_name", d.FirstName)
	issues.Required("birthdate", d.Birthdate)
	issues.Required("sex", d.Sex)
	if d.Birthdate != "" {
		birth, err := time.Parse(BirthdateLayout, d.Birthdate)
		switch {
		case err != nil:
			issues.Invalid("birthdate", "birthdate must be a date in YYYY-MM-DD format")
		case birth.After(now):
			issues.Invalid("birthdate", "birthdate cannot be in the future")
		}
	}
	return issues.Err()
}

// Register validates d, rejects a duplicate identity, fills the derived fields
// and stores the donor. On success d carries the assigned donor_id.
func (s *Service) Register(ctx context.Context, d *Donor) error {
	now := s.now()
	if err := Validate(d, now); err != nil {
		return err
	}

	existing, err := s.repo.FindByIdentity(ctx, d.Surname, d.FirstName, d.Birthdate)
	switch {
	case err == nil:
		return fmt.Errorf("%w (donor %d)", ErrDuplicate, existing.DonorID)
	case !errors.Is(err, ErrNotFound):
		return err
	}

	birth, _ := time.Parse(BirthdateLayout, d.Birthdate)
	d.Age = AgeOn(birth, now)
	if d.Nationality == "" {
		d.Nationality = DefaultNationality
	}
	d.PRCDonorNumber = fmt.Sprintf("PRC-%d-%05d", now.Year(), 10000+s.intn(90000))
	d.DOHBarcode = fmt.Sprintf("DOH-%d%04d", now.Year(), 1000+s.intn(9000))
	d.RegistrationChannel = RegistrationChannel
	d.DonorID = 0
	d.CreatedAt = nil

	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id int64) (*Donor, error) {
	return s.repo.GetByID(ctx, id)
}
