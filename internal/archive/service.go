package archive

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Note is one uploaded document attached to a student.
type Note struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Title      string    `json:"title"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	Data       []byte    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ErrEmptyPayload rejects zero-length uploads before any store access.
var ErrEmptyPayload = errors.New("empty payload")

// ErrValidation marks other input rejected before any store access.
var ErrValidation = errors.New("validation failed")

// BroadcastFailure names one student a broadcast upload could not reach.
type BroadcastFailure struct {
	Username string `json:"username"`
	Err      error  `json:"-"`
}

// Reason is the failure message, exported for JSON responses.
func (f BroadcastFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// BroadcastResult aggregates a broadcast upload. Failures carry the exact
// identities and causes so a caller can retry just those.
type BroadcastResult struct {
	Succeeded int                `json:"succeeded"`
	Failures  []BroadcastFailure `json:"failures"`
}

// Failed is the number of students the upload did not reach.
func (r BroadcastResult) Failed() int { return len(r.Failures) }

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, n Note) (Note, error)
	ListFor(ctx context.Context, username string) ([]Note, error)
	Get(ctx context.Context, id int64) (Note, error)
	Delete(ctx context.Context, id int64) error
}

// Service holds the document archive rules: payload validation, title
// fallback, and broadcast partial-failure accounting.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Add stores one document for one student and returns the assigned id.
// A blank title falls back to the file name.
func (s *Service) Add(ctx context.Context, username, title, fileName, mimeType string, data []byte) (int64, error) {
	if username == "" {
		return 0, fmt.Errorf("%w: username required", ErrValidation)
	}
	if len(data) == 0 {
		return 0, ErrEmptyPayload
	}
	if title == "" {
		title = fileName
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	n, err := s.store.Insert(ctx, Note{
		Username: username,
		Title:    title,
		FileName: fileName,
		MimeType: mimeType,
		Data:     data,
	})
	if err != nil {
		return 0, err
	}
	return n.ID, nil
}

// AddBroadcast applies Add independently to every listed student. One
// student's failure never aborts the rest; the result names each failing
// student with its cause.
func (s *Service) AddBroadcast(ctx context.Context, usernames []string, title, fileName, mimeType string, data []byte) BroadcastResult {
	var res BroadcastResult
	for _, username := range usernames {
		if _, err := s.Add(ctx, username, title, fileName, mimeType, data); err != nil {
			res.Failures = append(res.Failures, BroadcastFailure{Username: username, Err: err})
			continue
		}
		res.Succeeded++
	}
	return res
}

// ListFor returns a student's notes, newest first.
func (s *Service) ListFor(ctx context.Context, username string) ([]Note, error) {
	return s.store.ListFor(ctx, username)
}

// Get returns one note with its payload.
func (s *Service) Get(ctx context.Context, id int64) (Note, error) {
	return s.store.Get(ctx, id)
}

// Delete removes a note permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}
