package model

import (
	"fmt"
	"strings"

	"library/internal/errors"
)

const minUsernameLength = 3

// Role is the closed set of user roles.
type Role int

const (
	RoleStudent Role = iota + 1
	RoleLibrarian
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleLibrarian:
		return "librarian"
	default:
		return "unknown"
	}
}

// ParseRole converts the wire name of a role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent, nil
	case "librarian":
		return RoleLibrarian, nil
	default:
		return 0, errors.Validation(errors.CodeInvalidUser, "unknown role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is a library member: a student who borrows or a librarian who manages.
type User struct {
	ID        Identity `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Role      Role     `json:"role"`
}

func (u User) String() string {
	return fmt.Sprintf("%s (%s)", u.Username, u.Role)
}

// IsStudent reports whether the user may borrow books.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}

// IsLibrarian reports whether the user manages the library.
func (u User) IsLibrarian() bool {
	return u.Role == RoleLibrarian
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Validate checks the field-level constraints of a user.
func (u User) Validate() error {
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if u.Role != RoleStudent && u.Role != RoleLibrarian {
		return errors.Validation(errors.CodeInvalidUser, "invalid role")
	}
	return nil
}

// ValidateUsername rejects usernames shorter than three characters.
func ValidateUsername(username string) error {
	if len(strings.TrimSpace(username)) < minUsernameLength {
		return errors.Validation(errors.CodeInvalidUser, "username too short")
	}
	return nil
}

// ValidateEmail requires an "@".
func ValidateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return errors.Validation(errors.CodeInvalidUser, "invalid email")
	}
	return nil
}
