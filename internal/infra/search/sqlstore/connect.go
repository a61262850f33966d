package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Connect opens a MySQL or SQLite database and pings it.
func Connect(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, err
	}
	switch d {
	case MySQL:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	case SQLite:
		// satu writer saja untuk sqlite
		db.SetMaxOpenConns(1)
	default:
		db.Close()
		return nil, fmt.Errorf("unknown dialect %q", d)
	}

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
