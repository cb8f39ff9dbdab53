package screening

import (
	"context"
	"fmt"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

type Repository interface {
	// Latest returns the newest screening for the donor, or nil.
	Latest(ctx context.Context, donorID int64) (*Screening, error)
	Create(ctx context.Context, s *Screening) error
	Update(ctx context.Context, id int64, s *Screening) error
	Patch(ctx context.Context, id int64, fields map[string]any) error
}

type storeRepo struct {
	store datastore.Store
}

func NewRepository(store datastore.Store) Repository {
	return &storeRepo{store: store}
}

func (r *storeRepo) Latest(ctx context.Context, donorID int64) (*Screening, error) {
	s, err := datastore.Latest[Screening](ctx, r.store, datastore.TableScreening, datastore.Filter{"donor_form_id": donorID})
	if err != nil {
		return nil, fmt.Errorf("latest screening for donor %d: %w", donorID, err)
	}
	return s, nil
}

func (r *storeRepo) Create(ctx context.Context, s *Screening) error {
	var stored []Screening
	if err := r.store.Insert(ctx, datastore.TableScreening, s, &stored); err != nil {
		return fmt.Errorf("insert screening: %w", err)
	}
	if len(stored) > 0 {
		*s = stored[0]
	}
	return nil
}

func (r *storeRepo) Update(ctx context.Context, id int64, s *Screening) error {
	if err := r.store.Patch(ctx, datastore.TableScreening, datastore.Filter{"screening_id": id}, s); err != nil {
		return fmt.Errorf("update screening %d: %w", id, err)
	}
	return nil
}

func (r *storeRepo) Patch(ctx context.Context, id int64, fields map[string]any) error {
	if err := r.store.Patch(ctx, datastore.TableScreening, datastore.Filter{"screening_id": id}, fields); err != nil {
		return fmt.Errorf("patch screening %d: %w", id, err)
	}
	return nil
}
