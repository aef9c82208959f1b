package issue

import (
	"database/sql"
	"time"
)

type PostgresStore struct {
	sqlStore
}

// NewPostgresStore wraps a pgx-backed *sql.DB. The issues table must exist
// (see db.Bootstrap).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore{
		db: db,
		d: dialect{
			placeholder: dollarPlaceholder,
			boolArg:     func(b bool) any { return b },
			timeArg:     func(t time.Time) any { return t.UTC() },
			greatest:    "GREATEST",
		},
	}}
}
