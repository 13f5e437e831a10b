package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Student represents a registered student profile.
type Student struct {
	Username string `json:"username"`
	Password string `json:"-"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Program  string `json:"program"`
	Phone    string `json:"phone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Admin represents an administrator account.
type Admin struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// Patch carries a sparse student update: nil fields are left untouched.
type Patch struct {
	Password *string
	FullName *string
	Email    *string
	Program  *string
	Phone    *string
	Notes    *string
}

// Empty reports whether the patch touches no fields.
func (p Patch) Empty() bool {
	return p.Password == nil && p.FullName == nil && p.Email == nil &&
		p.Program == nil && p.Phone == nil && p.Notes == nil
}

// ErrValidation marks input rejected before any store access.
var ErrValidation = errors.New("validation failed")

// Defaults applied to blank optional fields on create.
const (
	DefaultFullName = "Unnamed Student"
	DefaultEmail    = "Not provided"
	DefaultProgram  = "Undeclared"
)

// Store is the persistence surface the service needs.
type Store interface {
	List(ctx context.Context) ([]Student, error)
	Get(ctx context.Context, username string) (*Student, error)
	Insert(ctx context.Context, s Student) error
	Update(ctx context.Context, username string, p Patch) error
	Delete(ctx context.Context, username string) error
	AdminByCredentials(ctx context.Context, username, password string) (*Admin, error)
}

// Service holds the student registry rules: required fields, defaults for
// optional ones, sparse updates, and credential checks for both roles.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns all students sorted by username.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.store.List(ctx)
}

// Get returns one student, nil when absent.
func (s *Service) Get(ctx context.Context, username string) (*Student, error) {
	return s.store.Get(ctx, username)
}

// Create registers a new student. Username and password are required;
// blank optional fields are materialized to their documented defaults.
func (s *Service) Create(ctx context.Context, st Student) error {
	st.Username = strings.TrimSpace(st.Username)
	if st.Username == "" {
		return fmt.Errorf("%w: username required", ErrValidation)
	}
	if st.Password == "" {
		return fmt.Errorf("%w: password required", ErrValidation)
	}
	if st.FullName == "" {
		st.FullName = DefaultFullName
	}
	if st.Email == "" {
		st.Email = DefaultEmail
	}
	if st.Program == "" {
		st.Program = DefaultProgram
	}
	st.Notes = strings.TrimSpace(st.Notes)
	return s.store.Insert(ctx, st)
}

// Update applies a sparse patch. An empty patch succeeds without touching
// storage. Field-level authorization is the caller's concern; students go
// through UpdateContact instead.
func (s *Service) Update(ctx context.Context, username string, p Patch) error {
	if p.Empty() {
		return nil
	}
	return s.store.Update(ctx, username, p)
}

// UpdateContact is the student-reachable subset of Update: email and phone
// only. A blank email patches back to the documented default.
func (s *Service) UpdateContact(ctx context.Context, username string, email, phone *string) error {
	p := Patch{Email: email, Phone: phone}
	if email != nil && *email == "" {
		v := DefaultEmail
		p.Email = &v
	}
	return s.Update(ctx, username, p)
}

// Delete removes a student and, through the schema cascade, every
// attendance entry and note belonging to them.
func (s *Service) Delete(ctx context.Context, username string) error {
	return s.store.Delete(ctx, username)
}

// AuthenticateAdmin matches username and password exactly against the
// admins table. Returns nil on no match, not an error.
func (s *Service) AuthenticateAdmin(ctx context.Context, username, password string) (*Admin, error) {
	return s.store.AdminByCredentials(ctx, username, password)
}

// AuthenticateStudent looks the student up and compares the stored
// password for exact equality. Returns nil on no match.
func (s *Service) AuthenticateStudent(ctx context.Context, username, password string) (*Student, error) {
	st, err := s.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if st == nil || st.Password != password {
		return nil, nil
	}
	return st, nil
}
