package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/alfredjeanlab/dynfilter/filter"
	"github.com/alfredjeanlab/dynfilter/internal/model"
)

// beadColumns is the column list used for SELECT statements on the beads table.
const beadColumns = `id, kind, type, title, status, priority, assignee, owner,
	parent_id, created_at, updated_at, closed_at, due_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// filterColumns maps query kwargs names to bead columns. "labels" is
// resolved against the labels table instead.
var filterColumns = map[string]string{
	"id":         "id",
	"kind":       "kind",
	"type":       "type",
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
	"assignee":   "assignee",
	"owner":      "owner",
	"parent":     "parent_id",
	"parent_id":  "parent_id",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"closed_at":  "closed_at",
	"due_at":     "due_at",
}

// BeadCollection is the beads table as a filter target. It also resolves
// bead ids for reference fields.
type BeadCollection struct {
	db executor
}

var (
	_ filter.Collection = (*BeadCollection)(nil)
	_ filter.Lookup     = (*BeadCollection)(nil)
)

// All returns a query over every bead.
func (c *BeadCollection) All() filter.Scope {
	return &Query{db: c.db}
}

// Query returns All as its concrete type, for callers that page or sort.
func (c *BeadCollection) Query() *Query {
	return &Query{db: c.db}
}

// FindByKey returns the bead with the given id. A missing bead is reported
// as filter.ErrNotFound.
func (c *BeadCollection) FindByKey(ctx context.Context, key any) (any, error) {
	id, ok := key.(string)
	if !ok {
		id = fmt.Sprint(key)
	}
	b, err := queryGetBead(ctx, c.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bead %s: %w", id, filter.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

type predicate struct {
	key   string
	value any
}

// Query is an immutable, lazily compiled query over the beads table.
type Query struct {
	db     executor
	preds  []predicate
	sort   string
	limit  int
	offset int
}

var _ filter.Scope = (*Query)(nil)

func (q *Query) clone() *Query {
	c := *q
	c.preds = slices.Clone(q.preds)
	return &c
}

// Filter returns a query further constrained by kwargs. Keys are
// "column" or "column__op"; see compilePredicate for the operators.
func (q *Query) Filter(kwargs map[string]any) filter.Scope {
	return q.Where(kwargs)
}

// Where is Filter returning the concrete type.
func (q *Query) Where(kwargs map[string]any) *Query {
	c := q.clone()
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.preds = append(c.preds, predicate{key: k, value: kwargs[k]})
	}
	return c
}

// OrderBy sorts by column, descending when prefixed with "-".
func (q *Query) OrderBy(sort string) *Query {
	c := q.clone()
	c.sort = sort
	return c
}

// Page limits the result to limit rows starting at offset. Zero disables either.
func (q *Query) Page(limit, offset int) *Query {
	c := q.clone()
	c.limit, c.offset = limit, offset
	return c
}

// argList numbers positional parameters.
type argList struct {
	args []any
}

func (a *argList) next(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

// SQL compiles the query.
func (q *Query) SQL() (string, []any, error) {
	var (
		whereClauses []string
		args         argList
	)
	for _, p := range q.preds {
		clause, err := compilePredicate(p.key, p.value, &args)
		if err != nil {
			return "", nil, err
		}
		whereClauses = append(whereClauses, clause)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + beadColumns + " FROM beads" + whereSQL + " ORDER BY " + parseSortClause(q.sort)
	if q.limit > 0 {
		dataQuery += " LIMIT " + args.next(q.limit)
	}
	if q.offset > 0 {
		dataQuery += " OFFSET " + args.next(q.offset)
	}
	return dataQuery, args.args, nil
}

// List runs the query and returns the matching beads and their total count
// ignoring paging.
func (q *Query) List(ctx context.Context) ([]*model.Bead, int, error) {
	dataQuery, args, err := q.SQL()
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list beads: %w", err)
	}
	defer rows.Close()

	var beads []*model.Bead
	var total int
	for rows.Next() {
		b, t, err := scanBeadWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan beads: %w", err)
		}
		total = t
		beads = append(beads, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan beads: %w", err)
	}

	return beads, total, nil
}

// ListBeads sorts and pages the query, then lists it.
func (q *Query) ListBeads(ctx context.Context, sort string, limit, offset int) ([]*model.Bead, int, error) {
	return q.OrderBy(sort).Page(limit, offset).List(ctx)
}

// compilePredicate turns one kwargs entry into a WHERE clause.
func compilePredicate(key string, value any, args *argList) (string, error) {
	name, op, _ := strings.Cut(key, "__")
	value = keyOf(value)

	if name == "labels" {
		return compileLabels(op, value, args)
	}

	col, ok := filterColumns[name]
	if !ok {
		return "", fmt.Errorf("filter %q: unknown column %q", key, name)
	}

	switch op {
	case "", "exact":
		if value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + args.next(value), nil
	case "ne":
		if value == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + args.next(value), nil
	case "iexact":
		return "LOWER(" + col + ") = LOWER(" + args.next(value) + ")", nil
	case "gt":
		return col + " > " + args.next(value), nil
	case "gte":
		return col + " >= " + args.next(value), nil
	case "lt":
		return col + " < " + args.next(value), nil
	case "lte":
		return col + " <= " + args.next(value), nil
	case "in":
		return inClause(col, value, args)
	case "contains":
		return fmt.Sprintf("%s LIKE '%%' || %s || '%%'", col, args.next(value)), nil
	case "icontains":
		return fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", col, args.next(value)), nil
	case "startswith":
		return fmt.Sprintf("%s LIKE %s || '%%'", col, args.next(value)), nil
	case "isnull":
		if filter.Truthy(value) {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil
	}
	return "", fmt.Errorf("filter %q: unknown operator %q", key, op)
}

func compileLabels(op string, value any, args *argList) (string, error) {
	switch op {
	case "", "exact":
		return fmt.Sprintf("EXISTS (SELECT 1 FROM labels WHERE labels.bead_id = beads.id AND labels.label = %s)", args.next(value)), nil
	case "in":
		clause, err := inClause("labels.label", value, args)
		if err != nil {
			return "", err
		}
		return "EXISTS (SELECT 1 FROM labels WHERE labels.bead_id = beads.id AND " + clause + ")", nil
	}
	return "", fmt.Errorf("filter %q: unknown operator %q", "labels__"+op, op)
}

func inClause(col string, value any, args *argList) (string, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return "", fmt.Errorf("filter %s__in: expected a list, got %T", col, value)
	}
	if rv.Len() == 0 {
		return "FALSE", nil
	}
	placeholders := make([]string, rv.Len())
	for i := range rv.Len() {
		placeholders[i] = args.next(keyOf(rv.Index(i).Interface()))
	}
	return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
}

// keyOf replaces records with their primary key.
func keyOf(v any) any {
	if k, ok := v.(filter.Keyed); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return k.Key()
	}
	return v
}

func queryGetBead(ctx context.Context, db executor, id string) (*model.Bead, error) {
	row := db.QueryRowContext(ctx, `SELECT `+beadColumns+` FROM beads WHERE id = $1`, id)
	b, err := scanBead(row)
	if err != nil {
		return nil, err
	}

	labels, err := queryGetLabels(ctx, db, id)
	if err != nil {
		return nil, err
	}
	b.Labels = labels

	return b, nil
}

func queryGetLabels(ctx context.Context, db executor, beadID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT label FROM labels WHERE bead_id = $1 ORDER BY label`, beadID)
	if err != nil {
		return nil, fmt.Errorf("get labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// parseSortClause converts a sort spec like "-priority" into a SQL ORDER BY
// clause. Only known columns are accepted; anything else falls back to
// newest first.
func parseSortClause(sort string) string {
	if sort == "" {
		return "created_at DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"priority": true, "created_at": true, "updated_at": true,
		"title": true, "status": true, "type": true, "due_at": true,
	}
	if !allowed[col] {
		return "created_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
