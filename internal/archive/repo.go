package archive

import (
	"context"
	"database/sql"

	"studentdesk/internal/store"
)

// Repository persists student notes in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a note and returns its assigned id and upload time.
func (r *Repository) Insert(ctx context.Context, n Note) (Note, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO student_notes (student_username, title, file_name, mime_type, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at
	`, n.Username, n.Title, n.FileName, n.MimeType, n.Data)
	if err := row.Scan(&n.ID, &n.UploadedAt); err != nil {
		return Note{}, store.Wrap("insert note", err)
	}
	return n, nil
}

// ListFor returns a student's notes, newest upload first with id as the
// tie-break for same-instant uploads.
func (r *Repository) ListFor(ctx context.Context, username string) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_username, title, file_name, mime_type, data, uploaded_at
		FROM student_notes
		WHERE student_username = $1
		ORDER BY uploaded_at DESC, id DESC
	`, username)
	if err != nil {
		return nil, store.Wrap("list notes", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Username, &n.Title, &n.FileName, &n.MimeType, &n.Data, &n.UploadedAt); err != nil {
			return nil, store.Wrap("list notes", err)
		}
		notes = append(notes, n)
	}
	return notes, store.Wrap("list notes", rows.Err())
}

// Get returns a single note by id.
func (r *Repository) Get(ctx context.Context, id int64) (Note, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_username, title, file_name, mime_type, data, uploaded_at
		FROM student_notes WHERE id = $1
	`, id)
	var n Note
	if err := row.Scan(&n.ID, &n.Username, &n.Title, &n.FileName, &n.MimeType, &n.Data, &n.UploadedAt); err != nil {
		return Note{}, store.Wrap("get note", err)
	}
	return n, nil
}

// Delete removes a note by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_notes WHERE id = $1`, id)
	if err != nil {
		return store.Wrap("delete note", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.Wrap("delete note", sql.ErrNoRows)
	}
	return nil
}
