package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"studentdesk/internal/store"
)

// Repository persists attendance entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts or replaces the entry for (username, date). The unique
// constraint on that pair is what serializes concurrent marks; a replaced
// entry gets a fresh marked_at.
func (r *Repository) Upsert(ctx context.Context, username, date string, status Status) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (student_username, attendance_date, status, marked_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (student_username, attendance_date)
		DO UPDATE SET status = EXCLUDED.status, marked_at = NOW()
	`, username, date, status)
	return store.Wrap("mark attendance", err)
}

// StatusOn returns the recorded status for one day; ok is false when the
// day has no entry.
func (r *Repository) StatusOn(ctx context.Context, username, date string) (Status, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT status FROM attendance
		WHERE student_username = $1 AND attendance_date = $2
	`, username, date)
	var st Status
	if err := row.Scan(&st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, store.Wrap("attendance status", err)
	}
	return st, true, nil
}

// History returns all entries for a student, newest date first.
func (r *Repository) History(ctx context.Context, username string) ([]Entry, error) {
	return r.query(ctx, `
		SELECT id, student_username, attendance_date, status, marked_at
		FROM attendance
		WHERE student_username = $1
		ORDER BY attendance_date DESC
	`, username)
}

// Between returns entries with from <= attendance_date < to, ascending.
func (r *Repository) Between(ctx context.Context, username, from, to string) ([]Entry, error) {
	return r.query(ctx, `
		SELECT id, student_username, attendance_date, status, marked_at
		FROM attendance
		WHERE student_username = $1 AND attendance_date >= $2 AND attendance_date < $3
		ORDER BY attendance_date
	`, username, from, to)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, store.Wrap("attendance query", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var day time.Time
		if err := rows.Scan(&e.ID, &e.Username, &day, &e.Status, &e.MarkedAt); err != nil {
			return nil, store.Wrap("attendance query", err)
		}
		e.Date = day.Format(dateLayout)
		entries = append(entries, e)
	}
	return entries, store.Wrap("attendance query", rows.Err())
}

// Counts returns the total and present entry counts for a student.
func (r *Repository) Counts(ctx context.Context, username string) (total, present int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'present')
		FROM attendance
		WHERE student_username = $1
	`, username)
	if err := row.Scan(&total, &present); err != nil {
		return 0, 0, store.Wrap("attendance counts", err)
	}
	return total, present, nil
}
