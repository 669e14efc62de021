package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/dynfilter/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// beadRow holds the nullable columns of a bead while scanning.
type beadRow struct {
	assignee sql.NullString
	owner    sql.NullString
	parentID sql.NullString
	closedAt sql.NullTime
	dueAt    sql.NullTime
}

// dest returns scan destinations in the order defined by beadColumns.
func (r *beadRow) dest(b *model.Bead) []any {
	return []any{
		&b.ID,
		&b.Kind,
		&b.Type,
		&b.Title,
		&b.Status,
		&b.Priority,
		&r.assignee,
		&r.owner,
		&r.parentID,
		&b.CreatedAt,
		&b.UpdatedAt,
		&r.closedAt,
		&r.dueAt,
	}
}

func (r *beadRow) apply(b *model.Bead) {
	b.Assignee = r.assignee.String
	b.Owner = r.owner.String
	b.ParentID = r.parentID.String
	if r.closedAt.Valid {
		t := r.closedAt.Time
		b.ClosedAt = &t
	}
	if r.dueAt.Valid {
		t := r.dueAt.Time
		b.DueAt = &t
	}
}

// scanBead scans a single row into a model.Bead.
// The row must contain columns in the order defined by beadColumns.
func scanBead(row scannable) (*model.Bead, error) {
	var (
		b model.Bead
		r beadRow
	)
	if err := row.Scan(r.dest(&b)...); err != nil {
		return nil, err
	}
	r.apply(&b)
	return &b, nil
}

// scanBeadWithTotal scans a row that has a leading total_count column
// followed by the standard bead columns. Used by Query.List with
// COUNT(*) OVER().
func scanBeadWithTotal(row scannable) (*model.Bead, int, error) {
	var (
		total int
		b     model.Bead
		r     beadRow
	)
	if err := row.Scan(append([]any{&total}, r.dest(&b)...)...); err != nil {
		return nil, 0, err
	}
	r.apply(&b)
	return &b, total, nil
}
