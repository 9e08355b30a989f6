// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

var DB *sql.DB

func Init() {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, pass, host, port, name,
	)

	var err error
	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}

	if err = DB.Ping(); err != nil {
		log.Fatalf("failed to ping DB: %v", err)
	}

	if err = EnsureSchema(DB); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	log.Println("✅ Connected to database")
}

// EnsureSchema creates the four core tables when missing. Idempotent, runs
// on every startup.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id SERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			remark TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			group_id INTEGER REFERENCES groups(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_group_id ON contacts(group_id)`,
		`CREATE TABLE IF NOT EXISTS broadcast_jobs (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			group_ids BIGINT[] NOT NULL,
			group_names TEXT[] NOT NULL DEFAULT '{}',
			run_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			total INTEGER,
			success_count INTEGER,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_broadcast_jobs_due ON broadcast_jobs(status, run_at)`,
		`CREATE TABLE IF NOT EXISTS delivery_history (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			group_names TEXT[] NOT NULL DEFAULT '{}',
			total INTEGER NOT NULL,
			success_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
