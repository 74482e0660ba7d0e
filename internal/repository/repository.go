package repository

import (
	"context"
	"errors"
)

// Standard errors for repository operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidQuery indicates a malformed criterion, order or relation.
	ErrInvalidQuery = errors.New("invalid query")
)

// Entity is implemented by every stored type. Both methods use value
// receivers so that T itself (not *T) satisfies the constraint.
type Entity interface {
	TableName() string
	EntityID() string
}

// Order sorts results by a single field
type Order struct {
	Field string
	Desc  bool
}

// PageQuery selects one page of an ordered, filtered collection.
// Page is 1-based.
type PageQuery struct {
	Page    int
	Size    int
	Order   Order
	Where   Criterion
	Include []string
}

// Offset returns the number of rows skipped before this page
func (q PageQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Size
}

// Repository is the generic paged data-access contract. A nil Criterion
// matches every record.
type Repository[T Entity] interface {
	GetByID(ctx context.Context, id string, include ...string) (*T, error)
	GetPaged(ctx context.Context, q PageQuery) ([]T, error)
	Find(ctx context.Context, where Criterion, include ...string) ([]T, error)
	Add(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context, where Criterion) (int64, error)
	Exists(ctx context.Context, where Criterion) (bool, error)
}
