package library

import "time"

// Role selects a user partition. Each role has its own id/username namespace.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Category selects a book partition: the general collection lent to students
// and the restricted collection lent to teachers.
type Category string

const (
	CategoryStudent Category = "student"
	CategoryTeacher Category = "teacher"
)

const (
	// LoanPeriodDays is the fixed borrowing window; the due date is the
	// borrow date plus this many days.
	LoanPeriodDays = 14

	// FinePerDay is charged, in minor currency units, per whole day a return
	// runs past the due date.
	FinePerDay = 10

	// NotProvided is the sentinel stored for blank contact/email fields so
	// that readers never see an absent field.
	NotProvided = "Not provided"

	// DateLayout is the serialization format for all circulation dates.
	DateLayout = "2006-01-02"
)

// Transaction status values.
const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
)

// User is a registered account inside one role partition.
//
// Credentials come in two shapes: current records carry a bcrypt hash in
// PasswordHash, legacy records carry the raw secret in Password. Legacy
// records are upgraded to a hash on their first successful login.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Email        string `json:"email"`
}

// Book tracks a title's copy counts inside one category partition.
// Available is derived state: copies minus currently open borrows. Only the
// circulation engine may move it.
type Book struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Copies    int    `json:"copies"`
	Available int    `json:"available"`
}

// Transaction is one borrow/return cycle. UserName and BookTitle are
// snapshots taken at borrow time so history survives later edits. Returned
// transactions are immutable audit history and are never deleted.
type Transaction struct {
	ID         int     `json:"id"`
	UserID     string  `json:"user_id"`
	UserName   string  `json:"user_name"`
	BookID     string  `json:"book_id"`
	BookTitle  string  `json:"book_title"`
	BorrowDate string  `json:"borrow_date"`
	DueDate    string  `json:"due_date"`
	ReturnDate *string `json:"return_date"`
	Status     string  `json:"status"`
	Fine       int     `json:"fine"`
}

// Open reports whether the transaction is a currently open borrow.
func (t *Transaction) Open() bool { return t.Status == StatusBorrowed }

// ParseDate parses a circulation date in its serialized form.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders t in the serialized circulation date form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
