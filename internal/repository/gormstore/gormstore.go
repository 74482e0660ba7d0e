// Package gormstore implements repository.Repository on top of GORM
// (SQLite or PostgreSQL).
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forgo/jobboard/internal/repository"
)

// Store is a GORM-backed generic repository for T
type Store[T repository.Entity] struct {
	db *gorm.DB
}

// New creates a store for T
func New[T repository.Entity](db *gorm.DB) *Store[T] {
	return &Store[T]{db: db}
}

var relationPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]{0,62}$`)

func (s *Store[T]) query(ctx context.Context, include []string) (*gorm.DB, error) {
	tx := s.db.WithContext(ctx).Model(new(T))
	for _, rel := range include {
		if !relationPattern.MatchString(rel) {
			return nil, fmt.Errorf("%w: relation %q", repository.ErrInvalidQuery, rel)
		}
		tx = tx.Preload(rel)
	}
	return tx, nil
}

// GetByID retrieves a record by primary key
func (s *Store[T]) GetByID(ctx context.Context, id string, include ...string) (*T, error) {
	tx, err := s.query(ctx, include)
	if err != nil {
		return nil, err
	}

	var out T
	if err := tx.Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// GetPaged returns one page ordered by q.Order, then by id for stable paging
func (s *Store[T]) GetPaged(ctx context.Context, q repository.PageQuery) ([]T, error) {
	if err := repository.ValidatePageQuery(q); err != nil {
		return nil, err
	}

	tx, err := s.query(ctx, q.Include)
	if err != nil {
		return nil, err
	}
	tx, err = applyWhere(tx, q.Where)
	if err != nil {
		return nil, err
	}
	if q.Order.Field != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.Order.Field}, Desc: q.Order.Desc})
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})

	var out []T
	if err := tx.Offset(q.Offset()).Limit(q.Size).Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Find returns every record matching where
func (s *Store[T]) Find(ctx context.Context, where repository.Criterion, include ...string) ([]T, error) {
	if err := repository.ValidateCriterion(where); err != nil {
		return nil, err
	}

	tx, err := s.query(ctx, include)
	if err != nil {
		return nil, err
	}
	tx, err = applyWhere(tx, where)
	if err != nil {
		return nil, err
	}

	var out []T
	if err := tx.Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Add inserts a new record. Associations are never written through.
func (s *Store[T]) Add(ctx context.Context, entity *T) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error
	return translate(err)
}

// Update writes every column of an existing record, zero values included
func (s *Store[T]) Update(ctx context.Context, entity *T) error {
	res := s.db.WithContext(ctx).
		Model(entity).
		Select("*").
		Omit(clause.Associations).
		Updates(entity)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Remove deletes a record by primary key
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Count returns the number of records matching where
func (s *Store[T]) Count(ctx context.Context, where repository.Criterion) (int64, error) {
	if err := repository.ValidateCriterion(where); err != nil {
		return 0, err
	}

	tx, err := applyWhere(s.db.WithContext(ctx).Model(new(T)), where)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Exists reports whether any record matches where
func (s *Store[T]) Exists(ctx context.Context, where repository.Criterion) (bool, error) {
	n, err := s.Count(ctx, where)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func applyWhere(tx *gorm.DB, where repository.Criterion) (*gorm.DB, error) {
	if where == nil {
		return tx, nil
	}
	sql, args, err := compile(where)
	if err != nil {
		return nil, err
	}
	return tx.Where(sql, args...), nil
}

// compile renders a criterion as a SQL boolean expression with ? placeholders
func compile(c repository.Criterion) (string, []any, error) {
	switch v := c.(type) {
	case repository.Comparison:
		if !repository.ValidField(v.Field) {
			return "", nil, fmt.Errorf("%w: field %q", repository.ErrInvalidQuery, v.Field)
		}
		switch v.Op {
		case repository.OpEq:
			return v.Field + " = ?", []any{v.Value}, nil
		case repository.OpNotEq:
			return v.Field + " <> ?", []any{v.Value}, nil
		case repository.OpLess:
			return v.Field + " < ?", []any{v.Value}, nil
		case repository.OpContainsFold:
			s, _ := v.Value.(string)
			return "LOWER(" + v.Field + `) LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(strings.ToLower(s)) + "%"}, nil
		}
		return "", nil, fmt.Errorf("%w: %s", repository.ErrInvalidQuery, v.Op)

	case repository.Group:
		if len(v.Terms) == 0 {
			if v.Kind == repository.GroupAny {
				return "1 = 0", nil, nil
			}
			return "1 = 1", nil, nil
		}
		joiner := " AND "
		if v.Kind == repository.GroupAny {
			joiner = " OR "
		}
		parts := make([]string, 0, len(v.Terms))
		var args []any
		for _, t := range v.Terms {
			sql, a, err := compile(t)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, joiner) + ")", args, nil
	}
	return "", nil, fmt.Errorf("%w: unsupported criterion %T", repository.ErrInvalidQuery, c)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueConstraintError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

func isUniqueConstraintError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
