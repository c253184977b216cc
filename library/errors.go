package library

import "errors"

// Error kinds returned by the stores and the circulation engine. All of them
// are recoverable by the caller; the engine never terminates the process. The
// presentation shell matches on these with errors.Is and renders its own
// messages.
var (
	// ErrNotFound signals a credential check or lookup that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFormat signals a malformed role-specific user id at registration.
	ErrInvalidFormat = errors.New("invalid id format")

	// ErrDuplicateKey signals a username or id collision inside a role partition.
	ErrDuplicateKey = errors.New("username or id already exists")

	// ErrInvalidInput signals missing or undersized registration/book fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientCopies signals a borrow attempt with no copy available.
	ErrInsufficientCopies = errors.New("no copies available")

	// ErrDuplicateBorrow signals a second open borrow of the same book by the
	// same user.
	ErrDuplicateBorrow = errors.New("book already borrowed by this user")

	// ErrNotBorrowed signals a return of a transaction that is not open.
	ErrNotBorrowed = errors.New("transaction is not an open borrow")

	// ErrConflict signals a deletion blocked by an open transaction.
	ErrConflict = errors.New("blocked by an open transaction")

	// ErrIOFailure signals that a durable commit could not complete. The
	// in-memory state remains authoritative for the rest of the process.
	ErrIOFailure = errors.New("durable write failed")
)
