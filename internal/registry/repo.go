package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studentdesk/internal/store"
)

// Repository persists student and admin records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns all students ordered by username. The password column is
// deliberately left out of the projection.
func (r *Repository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, full_name, email, program, phone, notes
		FROM students
		ORDER BY username
	`)
	if err != nil {
		return nil, store.Wrap("list students", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		var phone, notes sql.NullString
		if err := rows.Scan(&s.Username, &s.FullName, &s.Email, &s.Program, &phone, &notes); err != nil {
			return nil, store.Wrap("list students", err)
		}
		s.Phone = phone.String
		s.Notes = notes.String
		students = append(students, s)
	}
	return students, store.Wrap("list students", rows.Err())
}

// Get returns a single student by username, nil when absent.
func (r *Repository) Get(ctx context.Context, username string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, password, full_name, email, program, phone, notes
		FROM students WHERE username = $1
	`, username)
	var s Student
	var phone, notes sql.NullString
	if err := row.Scan(&s.Username, &s.Password, &s.FullName, &s.Email, &s.Program, &phone, &notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("get student", err)
	}
	s.Phone = phone.String
	s.Notes = notes.String
	return &s, nil
}

// Insert writes a new student row.
func (r *Repository) Insert(ctx context.Context, s Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (username, password, full_name, email, program, phone, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.Username, s.Password, s.FullName, s.Email, s.Program, s.Phone, s.Notes)
	return store.Wrap("insert student", err)
}

// Update applies only the fields present in the patch. Callers must check
// Patch.Empty first; an empty patch here is a programming error.
func (r *Repository) Update(ctx context.Context, username string, p Patch) error {
	query := "UPDATE students SET "
	args := []any{}
	clauses := []string{}
	set := func(column string, v *string) {
		if v != nil {
			clauses = append(clauses, column+" = $"+itoa(len(args)+1))
			args = append(args, *v)
		}
	}
	set("password", p.Password)
	set("full_name", p.FullName)
	set("email", p.Email)
	set("program", p.Program)
	set("phone", p.Phone)
	set("notes", p.Notes)
	if len(clauses) == 0 {
		return nil
	}
	query += joinClauses(clauses, ", ") + " WHERE username = $" + itoa(len(args)+1)
	args = append(args, username)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.Wrap("update student", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.Wrap("update student", sql.ErrNoRows)
	}
	return nil
}

// Delete removes a student. The schema cascades to attendance and notes;
// running inside a transaction keeps the whole removal atomic.
func (r *Repository) Delete(ctx context.Context, username string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("delete student", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE username = $1`, username)
	if err != nil {
		return store.Wrap("delete student", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.Wrap("delete student", sql.ErrNoRows)
	}
	return store.Wrap("delete student", tx.Commit())
}

// AdminByCredentials returns the admin matching both fields, nil otherwise.
func (r *Repository) AdminByCredentials(ctx context.Context, username, password string) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, full_name
		FROM admins
		WHERE username = $1 AND password = $2
	`, username, password)
	var a Admin
	if err := row.Scan(&a.Username, &a.FullName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("admin credentials", err)
	}
	return &a, nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
