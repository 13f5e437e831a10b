package registry

import (
	"context"
	"errors"
	"sort"
	"testing"

	"studentdesk/internal/store"
)

type fakeStore struct {
	students  map[string]Student
	admins    map[string]Admin
	passwords map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		students:  make(map[string]Student),
		admins:    map[string]Admin{"admin": {Username: "admin", FullName: "Administrator"}},
		passwords: map[string]string{"admin": "admin123"},
	}
}

func (f *fakeStore) List(_ context.Context) ([]Student, error) {
	out := make([]Student, 0, len(f.students))
	for _, s := range f.students {
		s.Password = ""
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, username string) (*Student, error) {
	s, ok := f.students[username]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) Insert(_ context.Context, s Student) error {
	if _, ok := f.students[s.Username]; ok {
		return store.ErrDuplicateKey
	}
	f.students[s.Username] = s
	return nil
}

func (f *fakeStore) Update(_ context.Context, username string, p Patch) error {
	s, ok := f.students[username]
	if !ok {
		return store.ErrNotFound
	}
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&s.Password, p.Password)
	apply(&s.FullName, p.FullName)
	apply(&s.Email, p.Email)
	apply(&s.Program, p.Program)
	apply(&s.Phone, p.Phone)
	apply(&s.Notes, p.Notes)
	f.students[username] = s
	return nil
}

func (f *fakeStore) Delete(_ context.Context, username string) error {
	if _, ok := f.students[username]; !ok {
		return store.ErrNotFound
	}
	delete(f.students, username)
	return nil
}

func (f *fakeStore) AdminByCredentials(_ context.Context, username, password string) (*Admin, error) {
	if f.passwords[username] != password {
		return nil, nil
	}
	a, ok := f.admins[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	tests := []struct {
		name    string
		student Student
	}{
		{"missing username", Student{Password: "pw"}},
		{"whitespace username", Student{Username: "   ", Password: "pw"}},
		{"missing password", Student{Username: "jdoe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(ctx, tt.student); !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateDefaults(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)
	ctx := context.Background()

	if err := svc.Create(ctx, Student{Username: "jdoe", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, "jdoe")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("student not stored")
	}
	if got.FullName != DefaultFullName {
		t.Errorf("full_name: got %q, want %q", got.FullName, DefaultFullName)
	}
	if got.Email != DefaultEmail {
		t.Errorf("email: got %q, want %q", got.Email, DefaultEmail)
	}
	if got.Program != DefaultProgram {
		t.Errorf("program: got %q, want %q", got.Program, DefaultProgram)
	}
	if got.Phone != "" || got.Notes != "" {
		t.Errorf("phone and notes should default empty: %q %q", got.Phone, got.Notes)
	}
}

func TestCreateKeepsSuppliedFields(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)
	ctx := context.Background()

	in := Student{
		Username: "jdoe",
		Password: "pw",
		FullName: "Jo Doe",
		Email:    "jo@example.com",
		Program:  "Physics",
		Phone:    "(555) 010-9999",
		Notes:    "Transfer student.",
	}
	if err := svc.Create(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, "jdoe")
	if got.FullName != in.FullName || got.Email != in.Email || got.Program != in.Program ||
		got.Phone != in.Phone || got.Notes != in.Notes {
		t.Fatalf("stored fields differ: %+v", got)
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	if err := svc.Create(ctx, Student{Username: "jdoe", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	err := svc.Create(ctx, Student{Username: "jdoe", Password: "other"})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
}

func TestUpdateEmptyPatchIsNoOp(t *testing.T) {
	svc := NewService(newFakeStore())
	// No such student exists, but an empty patch must succeed without
	// ever reaching the store.
	if err := svc.Update(context.Background(), "ghost", Patch{}); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
}

func TestUpdateSparsePatch(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)
	ctx := context.Background()

	if err := svc.Create(ctx, Student{Username: "jdoe", Password: "pw", Email: "old@example.com", Program: "Physics"}); err != nil {
		t.Fatal(err)
	}
	email := "new@example.com"
	if err := svc.Update(ctx, "jdoe", Patch{Email: &email}); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, "jdoe")
	if got.Email != email {
		t.Errorf("email not updated: %q", got.Email)
	}
	if got.Program != "Physics" {
		t.Errorf("untouched field changed: %q", got.Program)
	}
}

func TestUpdateMissingStudent(t *testing.T) {
	svc := NewService(newFakeStore())
	name := "New Name"
	err := svc.Update(context.Background(), "ghost", Patch{FullName: &name})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateContact(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)
	ctx := context.Background()

	if err := svc.Create(ctx, Student{Username: "jdoe", Password: "pw", Email: "jo@example.com", Phone: "(555) 010-9999"}); err != nil {
		t.Fatal(err)
	}

	blank := ""
	phone := "(555) 010-0000"
	if err := svc.UpdateContact(ctx, "jdoe", &blank, &phone); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, "jdoe")
	if got.Email != DefaultEmail {
		t.Errorf("blank email should fall back to %q, got %q", DefaultEmail, got.Email)
	}
	if got.Phone != phone {
		t.Errorf("phone: got %q, want %q", got.Phone, phone)
	}
	if got.Password != "pw" {
		t.Errorf("contact update must not touch password, got %q", got.Password)
	}
}

func TestAuthenticateStudent(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)
	ctx := context.Background()

	if err := svc.Create(ctx, Student{Username: "sara", Password: "sara2024"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.AuthenticateStudent(ctx, "sara", "sara2024")
	if err != nil || got == nil {
		t.Fatalf("valid credentials rejected: %v %v", got, err)
	}
	got, err = svc.AuthenticateStudent(ctx, "sara", "wrong")
	if err != nil || got != nil {
		t.Fatalf("wrong password accepted: %v %v", got, err)
	}
	got, err = svc.AuthenticateStudent(ctx, "nobody", "sara2024")
	if err != nil || got != nil {
		t.Fatalf("unknown user accepted: %v %v", got, err)
	}
}
