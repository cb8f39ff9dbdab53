package physicalexam

import (
	"context"
	"fmt"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

type Repository interface {
	Latest(ctx context.Context, donorID int64) (*Exam, error)
	Create(ctx context.Context, e *Exam) error
	Update(ctx context.Context, id int64, e *Exam) error
	Patch(ctx context.Context, id int64, fields map[string]any) error
}

type storeRepo struct {
	store datastore.Store
}

func NewRepository(store datastore.Store) Repository {
	return &storeRepo{store: store}
}

func (r *storeRepo) Latest(ctx context.Context, donorID int64) (*Exam, error) {
	e, err := datastore.Latest[Exam](ctx, r.store, datastore.TablePhysicalExam, datastore.Filter{"donor_id": donorID})
	if err != nil {
		return nil, fmt.Errorf("latest physical exam for donor %d: %w", donorID, err)
	}
	return e, nil
}

func (r *storeRepo) Create(ctx context.Context, e *Exam) error {
	var stored []Exam
	if err := r.store.Insert(ctx, datastore.TablePhysicalExam, e, &stored); err != nil {
		return fmt.Errorf("insert physical exam: %w", err)
	}
	if len(stored) > 0 {
		*e = stored[0]
	}
	return nil
}

func (r *storeRepo) Update(ctx context.Context, id int64, e *Exam) error {
	return r.patch(ctx, id, e)
}

func (r *storeRepo) Patch(ctx context.Context, id int64, fields map[string]any) error {
	return r.patch(ctx, id, fields)
}

func (r *storeRepo) patch(ctx context.Context, id int64, v any) error {
	if err := r.store.Patch(ctx, datastore.TablePhysicalExam, datastore.Filter{"physical_exam_id": id}, v); err != nil {
		return fmt.Errorf("update physical exam %d: %w", id, err)
	}
	return nil
}
