package listener

import (
	"context"
	"database/sql"
)

// Execer is satisfied by *sql.DB and the traced postgres.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
