package auth

import (
	"context"
	"errors"

	"studentdesk/internal/registry"
	"studentdesk/internal/session"
)

// ErrInvalidCredentials is the single opaque login failure. It never
// distinguishes unknown usernames from wrong passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Credentials is the lookup surface login needs from the registry.
type Credentials interface {
	AuthenticateAdmin(ctx context.Context, username, password string) (*registry.Admin, error)
	AuthenticateStudent(ctx context.Context, username, password string) (*registry.Student, error)
}

// Identity is a resolved login.
type Identity struct {
	Username string
	FullName string
	Role     session.Role
}

// Login resolves a username/password pair. Admin credentials are always
// tried first; a pair matching both namespaces resolves as admin.
func Login(ctx context.Context, creds Credentials, username, password string) (Identity, error) {
	if username == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	admin, err := creds.AuthenticateAdmin(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	if admin != nil {
		return Identity{Username: admin.Username, FullName: admin.FullName, Role: session.RoleAdmin}, nil
	}
	student, err := creds.AuthenticateStudent(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	if student != nil {
		return Identity{Username: student.Username, FullName: student.FullName, Role: session.RoleStudent}, nil
	}
	return Identity{}, ErrInvalidCredentials
}
