package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/cognicore/markov/pkg/markov/internalerr"
)

const driverName = "sqlite"

// openDB opens and pings a SQLite database. Failures are reported as
// internalerr.ErrStoreUnavailable.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	return db, nil
}

// requireFile fails unless path names an existing regular file.
func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty database path", internalerr.ErrStoreUnavailable)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", internalerr.ErrStoreUnavailable, path)
	}
	return nil
}

func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
