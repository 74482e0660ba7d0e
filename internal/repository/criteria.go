package repository

import (
	"fmt"
	"regexp"
)

// Criterion is a filter over stored records. Criteria are plain values so
// each backend can translate them into its own query language.
type Criterion interface {
	isCriterion()
}

// Operator is a field comparison operator
type Operator int

const (
	OpEq Operator = iota + 1
	OpNotEq
	OpContainsFold // case-insensitive substring
	OpLess
)

func (o Operator) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNotEq:
		return "not_eq"
	case OpContainsFold:
		return "contains_fold"
	case OpLess:
		return "less"
	default:
		return fmt.Sprintf("operator(%d)", int(o))
	}
}

// Comparison tests one field against a value
type Comparison struct {
	Field string
	Op    Operator
	Value any
}

func (Comparison) isCriterion() {}

// GroupKind joins the terms of a Group
type GroupKind int

const (
	GroupAll GroupKind = iota + 1 // every term matches
	GroupAny                      // at least one term matches
)

// Group combines criteria. An empty GroupAll matches everything, an empty
// GroupAny matches nothing.
type Group struct {
	Kind  GroupKind
	Terms []Criterion
}

func (Group) isCriterion() {}

// Eq matches records whose field equals value
func Eq(field string, value any) Criterion {
	return Comparison{Field: field, Op: OpEq, Value: value}
}

// NotEq matches records whose field differs from value
func NotEq(field string, value any) Criterion {
	return Comparison{Field: field, Op: OpNotEq, Value: value}
}

// ContainsFold matches records whose text field contains substr, ignoring case
func ContainsFold(field, substr string) Criterion {
	return Comparison{Field: field, Op: OpContainsFold, Value: substr}
}

// Less matches records whose field sorts before value
func Less(field string, value any) Criterion {
	return Comparison{Field: field, Op: OpLess, Value: value}
}

// And matches when every non-nil term matches
func And(terms ...Criterion) Criterion {
	return Group{Kind: GroupAll, Terms: compact(terms)}
}

// Or matches when any non-nil term matches
func Or(terms ...Criterion) Criterion {
	return Group{Kind: GroupAny, Terms: compact(terms)}
}

func compact(terms []Criterion) []Criterion {
	out := make([]Criterion, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidField reports whether name is safe to splice into a query as a
// column or field name.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// ValidateCriterion checks every field name and operator in c
func ValidateCriterion(c Criterion) error {
	switch v := c.(type) {
	case nil:
		return nil
	case Comparison:
		if !ValidField(v.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, v.Field)
		}
		switch v.Op {
		case OpEq, OpNotEq, OpLess:
		case OpContainsFold:
			if _, ok := v.Value.(string); !ok {
				return fmt.Errorf("%w: %s on %q needs a string value", ErrInvalidQuery, v.Op, v.Field)
			}
		default:
			return fmt.Errorf("%w: %s", ErrInvalidQuery, v.Op)
		}
		return nil
	case Group:
		if v.Kind != GroupAll && v.Kind != GroupAny {
			return fmt.Errorf("%w: group kind %d", ErrInvalidQuery, v.Kind)
		}
		for _, t := range v.Terms {
			if err := ValidateCriterion(t); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported criterion %T", ErrInvalidQuery, c)
	}
}

// ValidatePageQuery checks paging bounds, ordering and filters
func ValidatePageQuery(q PageQuery) error {
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidQuery)
	}
	if q.Size < 1 {
		return fmt.Errorf("%w: size must be >= 1", ErrInvalidQuery)
	}
	if q.Order.Field != "" && !ValidField(q.Order.Field) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.Order.Field)
	}
	return ValidateCriterion(q.Where)
}
