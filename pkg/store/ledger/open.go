package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"    // Postgres driver
	_ "modernc.org/sqlite"   // SQLite driver (cgo-free)
)

// Open opens a database for the given dialect, runs migrations, and
// returns a ready ledger. The caller closes the *sql.DB.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLLedger, *sql.DB, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, nil, fmt.Errorf("ledger: unknown dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: open failed: %w", err)
	}
	led := NewSQLLedger(db, dialect)
	if err := led.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return led, db, nil
}
