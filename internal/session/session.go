package session

// Role of an authenticated identity.
type Role string

const (
	RoleNone    Role = ""
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Session is the transient authentication state for one caller. It is a
// value: transitions return a new Session, nothing is shared across
// callers and nothing is persisted.
type Session struct {
	Authenticated bool
	Role          Role
	User          string
}

// Anonymous is the initial state.
func Anonymous() Session {
	return Session{}
}

// LoginAdmin transitions to an admin session.
func (s Session) LoginAdmin(username string) Session {
	return Session{Authenticated: true, Role: RoleAdmin, User: username}
}

// LoginStudent transitions to a student session.
func (s Session) LoginStudent(username string) Session {
	return Session{Authenticated: true, Role: RoleStudent, User: username}
}

// Logout transitions back to anonymous from any state.
func (s Session) Logout() Session {
	return Anonymous()
}

// CanManageStudents gates registry create, full update and delete.
func (s Session) CanManageStudents() bool {
	return s.Authenticated && s.Role == RoleAdmin
}

// CanUploadNotes gates archive add, broadcast and delete.
func (s Session) CanUploadNotes() bool {
	return s.Authenticated && s.Role == RoleAdmin
}

// CanViewStudent gates profile, notes and attendance reads. Admins may
// view anyone; a student only themself.
func (s Session) CanViewStudent(username string) bool {
	if !s.Authenticated {
		return false
	}
	if s.Role == RoleAdmin {
		return true
	}
	return s.Role == RoleStudent && s.User == username
}

// CanMarkAttendance gates the check-in. Only the owning student may mark;
// admins never mark on a student's behalf.
func (s Session) CanMarkAttendance(username string) bool {
	return s.Authenticated && s.Role == RoleStudent && s.User == username
}

// CanEditContact gates the student self-service contact update.
func (s Session) CanEditContact(username string) bool {
	return s.Authenticated && s.Role == RoleStudent && s.User == username
}
