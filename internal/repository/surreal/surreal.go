// Package surreal implements repository.Repository on top of SurrealDB.
//
// Records are keyed as table:uuid. The bare uuid is what callers see in
// EntityID; the table prefix never leaves this package.
package surreal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/forgo/jobboard/internal/database"
	"github.com/forgo/jobboard/internal/repository"
)

// Relation describes a to-one relation loaded with a subquery. Name is the
// include name callers pass (the Go field name), Field is the JSON key the
// related record is decoded into.
type Relation struct {
	Name       string
	Field      string
	Table      string
	ForeignKey string
}

// Store is a SurrealDB-backed generic repository for T
type Store[T repository.Entity] struct {
	db        database.Database
	table     string
	relations map[string]Relation
}

// New creates a store for T with the relations it may include
func New[T repository.Entity](db database.Database, relations ...Relation) *Store[T] {
	var zero T
	rels := make(map[string]Relation, len(relations))
	for _, r := range relations {
		rels[r.Name] = r
	}
	return &Store[T]{db: db, table: zero.TableName(), relations: rels}
}

func (s *Store[T]) projection(include []string) (string, error) {
	var b strings.Builder
	b.WriteString("*")
	for _, name := range include {
		rel, ok := s.relations[name]
		if !ok || !repository.ValidField(rel.Field) || !repository.ValidField(rel.ForeignKey) || !repository.ValidField(rel.Table) {
			return "", fmt.Errorf("%w: relation %q", repository.ErrInvalidQuery, name)
		}
		fmt.Fprintf(&b, ", (SELECT * FROM type::thing('%s', $parent.%s))[0] AS %s", rel.Table, rel.ForeignKey, rel.Field)
	}
	return b.String(), nil
}

// GetByID retrieves a record by its uuid
func (s *Store[T]) GetByID(ctx context.Context, id string, include ...string) (*T, error) {
	proj, err := s.projection(include)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + proj + " FROM type::thing($tb, $id)"
	row, err := s.db.QueryOne(ctx, query, map[string]interface{}{"tb": s.table, "id": id})
	if err != nil {
		return nil, translate(err)
	}
	if row == nil {
		return nil, repository.ErrNotFound
	}

	var out T
	if err := decode(row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaged returns one page ordered by q.Order, then by id for stable paging
func (s *Store[T]) GetPaged(ctx context.Context, q repository.PageQuery) ([]T, error) {
	if err := repository.ValidatePageQuery(q); err != nil {
		return nil, err
	}
	proj, err := s.projection(q.Include)
	if err != nil {
		return nil, err
	}

	vars := map[string]interface{}{
		"tb":     s.table,
		"limit":  q.Size,
		"offset": q.Offset(),
	}
	where, err := s.where(q.Where, vars)
	if err != nil {
		return nil, err
	}

	order := "id ASC"
	if q.Order.Field != "" {
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		order = q.Order.Field + " " + dir + ", id ASC"
	}

	query := "SELECT " + proj + " FROM " + s.table + where + " ORDER BY " + order + " LIMIT $limit START $offset"
	return s.list(ctx, query, vars)
}

// Find returns every record matching where
func (s *Store[T]) Find(ctx context.Context, where repository.Criterion, include ...string) ([]T, error) {
	if err := repository.ValidateCriterion(where); err != nil {
		return nil, err
	}
	proj, err := s.projection(include)
	if err != nil {
		return nil, err
	}

	vars := map[string]interface{}{"tb": s.table}
	clause, err := s.where(where, vars)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "SELECT "+proj+" FROM "+s.table+clause, vars)
}

// Add creates the record under its own uuid
func (s *Store[T]) Add(ctx context.Context, entity *T) error {
	id := (*entity).EntityID()
	if id == "" {
		return fmt.Errorf("%w: missing id", repository.ErrInvalidQuery)
	}

	query := "CREATE type::thing($tb, $id) CONTENT $content"
	vars := map[string]interface{}{
		"tb":      s.table,
		"id":      id,
		"content": content(entity),
	}
	if err := s.db.Execute(ctx, query, vars); err != nil {
		return translate(err)
	}
	return nil
}

// Update replaces the stored content of an existing record
func (s *Store[T]) Update(ctx context.Context, entity *T) error {
	id := (*entity).EntityID()
	ok, err := s.Exists(ctx, repository.Eq("id", id))
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}

	query := "UPDATE type::thing($tb, $id) CONTENT $content"
	vars := map[string]interface{}{
		"tb":      s.table,
		"id":      id,
		"content": content(entity),
	}
	if err := s.db.Execute(ctx, query, vars); err != nil {
		return translate(err)
	}
	return nil
}

// Remove deletes a record by its uuid
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	rows, err := s.rows(ctx, "DELETE type::thing($tb, $id) RETURN BEFORE", map[string]interface{}{"tb": s.table, "id": id})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Count returns the number of records matching where
func (s *Store[T]) Count(ctx context.Context, where repository.Criterion) (int64, error) {
	if err := repository.ValidateCriterion(where); err != nil {
		return 0, err
	}

	vars := map[string]interface{}{"tb": s.table}
	clause, err := s.where(where, vars)
	if err != nil {
		return 0, err
	}

	rows, err := s.rows(ctx, "SELECT count() AS count FROM "+s.table+clause+" GROUP ALL", vars)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	return countValue(row["count"]), nil
}

// Exists reports whether any record matches where
func (s *Store[T]) Exists(ctx context.Context, where repository.Criterion) (bool, error) {
	n, err := s.Count(ctx, where)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store[T]) list(ctx context.Context, query string, vars map[string]interface{}) ([]T, error) {
	rows, err := s.rows(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var item T
		if err := decode(row, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// rows returns the records produced by the first statement of query
func (s *Store[T]) rows(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	results, err := s.db.Query(ctx, query, vars)
	if err != nil {
		return nil, translate(err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: unexpected response %T", database.ErrQuery, results[0])
	}
	switch r := resp["result"].(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return r, nil
	default:
		return []interface{}{r}, nil
	}
}

func (s *Store[T]) where(c repository.Criterion, vars map[string]interface{}) (string, error) {
	if c == nil {
		return "", nil
	}
	expr, err := s.compile(c, vars)
	if err != nil {
		return "", err
	}
	return " WHERE " + expr, nil
}

// compile renders a criterion as a SurrealQL condition, binding values as
// $pN variables in vars.
func (s *Store[T]) compile(c repository.Criterion, vars map[string]interface{}) (string, error) {
	switch v := c.(type) {
	case repository.Comparison:
		if !repository.ValidField(v.Field) {
			return "", fmt.Errorf("%w: field %q", repository.ErrInvalidQuery, v.Field)
		}
		name := "p" + strconv.Itoa(len(vars))
		param := "$" + name
		value := v.Value
		if v.Field == "id" {
			param = "type::thing($tb, " + param + ")"
		}
		var expr string
		switch v.Op {
		case repository.OpEq:
			expr = v.Field + " = " + param
		case repository.OpNotEq:
			expr = v.Field + " != " + param
		case repository.OpLess:
			expr = v.Field + " < " + param
		case repository.OpContainsFold:
			str, _ := value.(string)
			value = strings.ToLower(str)
			expr = "string::lowercase(" + v.Field + ") CONTAINS " + param
		default:
			return "", fmt.Errorf("%w: %s", repository.ErrInvalidQuery, v.Op)
		}
		vars[name] = encodeValue(value)
		return expr, nil

	case repository.Group:
		if len(v.Terms) == 0 {
			if v.Kind == repository.GroupAny {
				return "false", nil
			}
			return "true", nil
		}
		joiner := " AND "
		if v.Kind == repository.GroupAny {
			joiner = " OR "
		}
		parts := make([]string, 0, len(v.Terms))
		for _, t := range v.Terms {
			expr, err := s.compile(t, vars)
			if err != nil {
				return "", err
			}
			parts = append(parts, expr)
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	}
	return "", fmt.Errorf("%w: unsupported criterion %T", repository.ErrInvalidQuery, c)
}

// content converts an entity to the map stored in SurrealDB. The id is
// carried by the record key, and relation fields (pointers and slices of
// structs) are never written through.
func content(entity interface{}) map[string]interface{} {
	rv := reflect.Indirect(reflect.ValueOf(entity))
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" || name == "id" {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map:
			continue
		}
		out[name] = encodeValue(rv.Field(i).Interface())
	}
	return out
}

func encodeValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return models.CustomDateTime{Time: t.UTC()}
	}
	return v
}

// decode converts a SurrealDB record into dst via a JSON round trip
func decode(row interface{}, dst interface{}) error {
	data, err := json.Marshal(normalize(row))
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", database.ErrQuery, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode record: %v", database.ErrQuery, err)
	}
	return nil
}

// normalize replaces SurrealDB wire types with plain JSON-friendly values:
// record ids become their bare key and datetimes become time.Time.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case models.RecordID:
		return recordKey(t)
	case *models.RecordID:
		if t == nil {
			return nil
		}
		return recordKey(*t)
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

func recordKey(id models.RecordID) string {
	if s, ok := id.ID.(string); ok {
		return s
	}
	return fmt.Sprint(id.ID)
}

func countValue(v interface{}) int64 {
	switch c := v.(type) {
	case float64:
		return int64(c)
	case int:
		return int64(c)
	case int64:
		return c
	case uint64:
		return int64(c)
	case int32:
		return int64(c)
	case uint32:
		return int64(c)
	}
	return 0
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "already contains") ||
		strings.Contains(msg, "unique") {
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	if errors.Is(err, database.ErrNotFound) {
		return repository.ErrNotFound
	}
	return err
}
