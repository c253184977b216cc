package library

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Identity holds user records partitioned by role. The JSON field names are
// the persisted document's top-level "users" keys.
type Identity struct {
	Students []*User `json:"students"`
	Teachers []*User `json:"teachers"`
	Admins   []*User `json:"admin"`
}

// Role-specific id patterns, checked before a candidate ever reaches the
// store. Student ids look like E25CSEU1187, teacher ids like T25CSED101.
var (
	studentIDPattern = regexp.MustCompile(`^[A-Z]\d{2}[A-Z]{3,4}\d{4}$`)
	teacherIDPattern = regexp.MustCompile(`^[A-Z]\d{2}[A-Z]{4}\d{3}$`)
)

// normalizeID upcases a candidate id so validation and uniqueness checks see
// the stored form.
func normalizeID(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

// ValidateUserID checks the role-specific id format. Admin ids are created
// by operators and carry no format constraint.
func ValidateUserID(role Role, id string) error {
	switch role {
	case RoleStudent:
		if !studentIDPattern.MatchString(id) {
			return fmt.Errorf("student id %q: %w", id, ErrInvalidFormat)
		}
	case RoleTeacher:
		if !teacherIDPattern.MatchString(id) {
			return fmt.Errorf("teacher id %q: %w", id, ErrInvalidFormat)
		}
	}
	return nil
}

func (i *Identity) partition(role Role) *[]*User {
	switch role {
	case RoleTeacher:
		return &i.Teachers
	case RoleAdmin:
		return &i.Admins
	default:
		return &i.Students
	}
}

// HashPassword derives the stored credential from a raw secret.
func HashPassword(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// checkSecret verifies a raw secret against the stored credential, accepting
// either the bcrypt hash of current records or the raw password of legacy ones.
func (u *User) checkSecret(secret string) bool {
	if u.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(u.Password), []byte(secret)) == 1
}

// legacyCredential reports whether the record still stores a raw password.
func (u *User) legacyCredential() bool { return u.PasswordHash == "" }

// VerifyCredential scans the role partition for a user matching username and
// secret. It has no side effects; credential upgrades happen in the engine's
// login path.
func (i *Identity) VerifyCredential(username, secret string, role Role) (*User, error) {
	for _, u := range *i.partition(role) {
		if u.Username == username && u.checkSecret(secret) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("verify %s %q: %w", role, username, ErrNotFound)
}

// FindByID looks a user up by id across the student and teacher partitions.
func (i *Identity) FindByID(id string) (*User, Role) {
	for _, u := range i.Students {
		if u.ID == id {
			return u, RoleStudent
		}
	}
	for _, u := range i.Teachers {
		if u.ID == id {
			return u, RoleTeacher
		}
	}
	return nil, ""
}

// Users returns the records of one role partition.
func (i *Identity) Users(role Role) []*User { return *i.partition(role) }

// Register appends candidate to the role partition. The candidate arrives
// with a raw secret in Password; it is stored hashed. Username uniqueness is
// case-insensitive, id uniqueness exact, both scoped to the partition.
func (i *Identity) Register(role Role, candidate *User) (*User, error) {
	part := i.partition(role)
	for _, u := range *part {
		if strings.EqualFold(u.Username, candidate.Username) {
			return nil, fmt.Errorf("username %q: %w", candidate.Username, ErrDuplicateKey)
		}
		if u.ID == candidate.ID {
			return nil, fmt.Errorf("id %q: %w", candidate.ID, ErrDuplicateKey)
		}
	}

	hash, err := HashPassword(candidate.Password)
	if err != nil {
		return nil, err
	}
	candidate.Password = ""
	candidate.PasswordHash = hash

	if candidate.Contact == "" {
		candidate.Contact = NotProvided
	}
	if candidate.Email == "" {
		candidate.Email = NotProvided
	}

	*part = append(*part, candidate)
	return candidate, nil
}

// UserPatch carries the fields an update may change. Zero-valued fields are
// left untouched; a non-empty Password replaces the stored credential.
type UserPatch struct {
	Name     string
	Username string
	Contact  string
	Email    string
	Password string
}

// Update applies patch to the user with the given id in the role partition.
// A username change is held to the same case-insensitive uniqueness rule as
// registration.
func (i *Identity) Update(id string, role Role, patch UserPatch) (*User, error) {
	part := i.partition(role)
	if patch.Username != "" {
		for _, u := range *part {
			if u.ID != id && strings.EqualFold(u.Username, patch.Username) {
				return nil, fmt.Errorf("username %q: %w", patch.Username, ErrDuplicateKey)
			}
		}
	}
	for _, u := range *part {
		if u.ID != id {
			continue
		}
		if patch.Name != "" {
			u.Name = patch.Name
		}
		if patch.Username != "" {
			u.Username = patch.Username
		}
		if patch.Contact != "" {
			u.Contact = patch.Contact
		}
		if patch.Email != "" {
			u.Email = patch.Email
		}
		if patch.Password != "" {
			hash, err := HashPassword(patch.Password)
			if err != nil {
				return nil, err
			}
			u.Password = ""
			u.PasswordHash = hash
		}
		return u, nil
	}
	return nil, fmt.Errorf("update user %q: %w", id, ErrNotFound)
}

// remove deletes the user record. The open-transaction guard lives in the
// engine; the store itself only knows its own partition.
func (i *Identity) remove(id string, role Role) error {
	part := i.partition(role)
	for idx, u := range *part {
		if u.ID == id {
			*part = append((*part)[:idx], (*part)[idx+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete user %q: %w", id, ErrNotFound)
}
