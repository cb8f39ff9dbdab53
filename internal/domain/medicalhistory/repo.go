package medicalhistory

import (
	"context"
	"fmt"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

type Repository interface {
	// Get returns the donor's medical history, or nil when none exists.
	Get(ctx context.Context, donorID int64) (*Record, error)
	Create(ctx context.Context, donorID int64, p Patch) error
	Update(ctx context.Context, donorID int64, p Patch) error
}

type storeRepo struct {
	store datastore.Store
}

func NewRepository(store datastore.Store) Repository {
	return &storeRepo{store: store}
}

func (r *storeRepo) Get(ctx context.Context, donorID int64) (*Record, error) {
	rec, err := datastore.Latest[Record](ctx, r.store, datastore.TableMedical, datastore.Filter{"donor_id": donorID})
	if err != nil {
		return nil, fmt.Errorf("get medical history for donor %d: %w", donorID, err)
	}
	return rec, nil
}

func (r *storeRepo) Create(ctx context.Context, donorID int64, p Patch) error {
	row := make(Patch, len(p)+1)
	for k, v := range p {
		row[k] = v
	}
	row["donor_id"] = donorID
	if err := r.store.Insert(ctx, datastore.TableMedical, row, nil); err != nil {
		return fmt.Errorf("insert medical history for donor %d: %w", donorID, err)
	}
	return nil
}

// Update patches by donor_id, matching how the dashboard addresses the record.
func (r *storeRepo) Update(ctx context.Context, donorID int64, p Patch) error {
	if err := r.store.Patch(ctx, datastore.TableMedical, datastore.Filter{"donor_id": donorID}, p); err != nil {
		return fmt.Errorf("update medical history for donor %d: %w", donorID, err)
	}
	return nil
}
