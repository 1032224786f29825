package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// OpenPostgres connects to PostgreSQL through lib/pq.
func OpenPostgres(ctx context.Context, dsn, table string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}
	log.Printf("[INFO] Connected to PostgreSQL store (table=%s)", table)

	s, err := newSQLStore(ctx, db, table, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
