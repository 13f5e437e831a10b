package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		username  TEXT PRIMARY KEY,
		password  TEXT NOT NULL,
		full_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		username  TEXT PRIMARY KEY,
		password  TEXT NOT NULL,
		full_name TEXT NOT NULL,
		email     TEXT NOT NULL,
		program   TEXT NOT NULL,
		phone     TEXT,
		notes     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id               BIGSERIAL PRIMARY KEY,
		student_username TEXT NOT NULL REFERENCES students(username) ON DELETE CASCADE,
		attendance_date  DATE NOT NULL,
		status           TEXT NOT NULL CHECK (status IN ('present', 'absent')),
		marked_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_username, attendance_date)
	)`,
	`CREATE TABLE IF NOT EXISTS student_notes (
		id               BIGSERIAL PRIMARY KEY,
		student_username TEXT NOT NULL REFERENCES students(username) ON DELETE CASCADE,
		title            TEXT NOT NULL,
		file_name        TEXT NOT NULL,
		mime_type        TEXT NOT NULL,
		data             BYTEA NOT NULL,
		uploaded_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

type seedStudent struct {
	username, password, fullName, email, program, phone, notes string
}

var defaultAdmin = struct {
	username, password, fullName string
}{"admin", "admin123", "Administrator"}

var defaultStudents = []seedStudent{
	{
		username: "sara",
		password: "sara2024",
		fullName: "Sara Hernandez",
		email:    "sara.hernandez@example.com",
		program:  "Computer Science",
		phone:    "(555) 010-1111",
		notes:    "Robotics club president.",
	},
	{
		username: "dylan",
		password: "dylan2024",
		fullName: "Dylan Chen",
		email:    "dylan.chen@example.com",
		program:  "Mechanical Engineering",
		phone:    "(555) 010-2222",
		notes:    "Co-op placement at Horizon Industries.",
	},
	{
		username: "lina",
		password: "lina2024",
		fullName: "Lina Patel",
		email:    "lina.patel@example.com",
		program:  "Business Administration",
		phone:    "(555) 010-3333",
		notes:    "Dean's list for two consecutive years.",
	},
}

// Init creates the schema and seeds the default accounts. Schema creation
// and seeding run in one transaction; seeding only inserts usernames that
// are not already present, so Init is safe to call on every startup.
func (d *DB) Init(ctx context.Context) error {
	tx, err := d.Client.BeginTx(ctx, nil)
	if err != nil {
		return Wrap("init", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Wrap("init", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO admins (username, password, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
	`, defaultAdmin.username, defaultAdmin.password, defaultAdmin.fullName)
	if err != nil {
		return Wrap("init", err)
	}

	for _, s := range defaultStudents {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO students (username, password, full_name, email, program, phone, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (username) DO NOTHING
		`, s.username, s.password, s.fullName, s.email, s.program, s.phone, s.notes)
		if err != nil {
			return Wrap("init", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Wrap("init", err)
	}
	return nil
}
