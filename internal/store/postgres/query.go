package postgres

import (
	"fmt"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// defaultListLimit bounds list queries that do not set a limit.
const defaultListLimit = 50

// pagedQuery appends the time window, newest-first ordering and pagination of
// opts to base, which must already contain a WHERE clause. column is the
// timestamp column the window and ordering apply to.
func pagedQuery(base, column string, opts domain.ListOpts, args ...any) (string, []any) {
	query := base
	next := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", column, next)
		args = append(args, *opts.Since)
		next++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", column, next)
		args = append(args, *opts.Until)
		next++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", column)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", next)
	args = append(args, limit)
	next++

	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", next)
		args = append(args, opts.Offset)
	}
	return query, args
}
