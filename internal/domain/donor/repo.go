package donor

import (
	"context"
	"fmt"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

type Repository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id int64) (*Donor, error)
	FindByIdentity(ctx context.Context, surname, firstName, birthdate string) (*Donor, error)
}

type storeRepo struct {
	store datastore.Store
}

// NewRepository returns a Repository backed by the upstream store.
func NewRepository(store datastore.Store) Repository {
	return &storeRepo{store: store}
}

func (r *storeRepo) Create(ctx context.Context, d *Donor) error {
	var stored []Donor
	if err := r.store.Insert(ctx, datastore.TableDonor, d, &stored); err != nil {
		return fmt.Errorf("insert donor: %w", err)
	}
	if len(stored) == 0 {
		return fmt.Errorf("insert donor: empty representation")
	}
	*d = stored[0]
	return nil
}

func (r *storeRepo) GetByID(ctx context.Context, id int64) (*Donor, error) {
	d, err := datastore.Latest[Donor](ctx, r.store, datastore.TableDonor, datastore.Filter{"donor_id": id})
	if err != nil {
		return nil, fmt.Errorf("get donor %d: %w", id, err)
	}
	if d == nil {
		return nil, ErrNotFound
	}
	return d, nil
}

func (r *storeRepo) FindByIdentity(ctx context.Context, surname, firstName, birthdate string) (*Donor, error) {
	d, err := datastore.Latest[Donor](ctx, r.store, datastore.TableDonor, datastore.Filter{
		"surname":    surname,
		"first_name": firstName,
		"birthdate":  birthdate,
	})
	if err != nil {
		return nil, fmt.Errorf("find donor: %w", err)
	}
	if d == nil {
		return nil, ErrNotFound
	}
	return d, nil
}
