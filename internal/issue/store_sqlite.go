package issue

import (
	"database/sql"
	"time"
)

type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore wraps a modernc sqlite *sql.DB. Timestamps are stored as
// fixed-width UTC text.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqlStore{
		db: db,
		d: dialect{
			placeholder: func(int) string { return "?" },
			boolArg:     sqliteBool,
			timeArg:     func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
			greatest:    "MAX",
		},
	}}
}

func sqliteBool(b bool) any {
	if b {
		return int64(1)
	}
	return int64(0)
}
