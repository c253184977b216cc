package library

import (
	"fmt"
	"sync"
	"time"
)

// App is the circulation engine. It owns the three in-memory stores and the
// persistence gateway, and it is the only component allowed to move book
// availability or transaction status.
//
// Every mutating operation runs under one mutex spanning validate, mutate and
// commit: the durable write is whole-document, so interleaving two mutations
// could lose updates. Read operations take the read lock and hand back value
// copies, never live store pointers.
type App struct {
	mu     sync.RWMutex
	users  *Identity
	books  *Catalog
	ledger *Ledger
	store  *Store

	now func() time.Time
}

// NewApp loads the document from store and builds the engine around it.
func NewApp(store *Store) (*App, error) {
	users, books, ledger, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &App{
		users:  users,
		books:  books,
		ledger: ledger,
		store:  store,
		now:    time.Now,
	}, nil
}

// Close closes the underlying store.
func (a *App) Close() error { return a.store.Close() }

// commit durably writes the current state. Callers hold the write lock. A
// failed commit leaves memory authoritative and is reported, never retried.
func (a *App) commit() error {
	return a.store.Commit(a.users, a.books, a.ledger)
}

func (a *App) findUser(id string, role Role) *User {
	for _, u := range a.users.Users(role) {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sessions and accounts
// ---------------------------------------------------------------------------

// Login verifies credentials for the role. A legacy plaintext record that
// matches is upgraded in place to a bcrypt hash and committed, so the raw
// secret disappears from the document after the first successful login.
func (a *App) Login(username, secret string, role Role) (User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.users.VerifyCredential(username, secret, role)
	if err != nil {
		return User{}, err
	}

	if u.legacyCredential() {
		hash, err := HashPassword(secret)
		if err != nil {
			return User{}, err
		}
		u.Password = ""
		u.PasswordHash = hash
		if err := a.commit(); err != nil {
			return *u, err
		}
	}
	return *u, nil
}

// Register validates the candidate and appends it to the role partition.
// The role-specific id format is checked here, before the identity store is
// ever touched.
func (a *App) Register(role Role, candidate User) (User, error) {
	if candidate.Name == "" || candidate.Username == "" || candidate.Password == "" || candidate.ID == "" {
		return User{}, fmt.Errorf("register: name, username, password and id are required: %w", ErrInvalidInput)
	}
	if len(candidate.Username) < 3 {
		return User{}, fmt.Errorf("register: username must be at least 3 characters: %w", ErrInvalidInput)
	}
	if len(candidate.Password) < 6 {
		return User{}, fmt.Errorf("register: password must be at least 6 characters: %w", ErrInvalidInput)
	}
	candidate.ID = normalizeID(candidate.ID)
	if err := ValidateUserID(role, candidate.ID); err != nil {
		return User{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.users.Register(role, &candidate)
	if err != nil {
		return User{}, err
	}
	if err := a.commit(); err != nil {
		return *u, err
	}
	return *u, nil
}

// UpdateUser applies a patch to an existing account. Patched credentials are
// held to the same length floors as registration.
func (a *App) UpdateUser(id string, role Role, patch UserPatch) (User, error) {
	if patch.Username != "" && len(patch.Username) < 3 {
		return User{}, fmt.Errorf("update user: username must be at least 3 characters: %w", ErrInvalidInput)
	}
	if patch.Password != "" && len(patch.Password) < 6 {
		return User{}, fmt.Errorf("update user: password must be at least 6 characters: %w", ErrInvalidInput)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	u, err := a.users.Update(id, role, patch)
	if err != nil {
		return User{}, err
	}
	if err := a.commit(); err != nil {
		return *u, err
	}
	return *u, nil
}

// DeleteUser removes an account unless the ledger still holds an open borrow
// for it. The guard is a point-in-time scan under the write lock.
func (a *App) DeleteUser(id string, role Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if open := a.ledger.OpenByUser(id); len(open) > 0 {
		return fmt.Errorf("user %q has %d active borrow(s): %w", id, len(open), ErrConflict)
	}
	if err := a.users.remove(id, role); err != nil {
		return err
	}
	return a.commit()
}

// FindUser returns a copy of the user with the given id from the student or
// teacher partitions, with credentials blanked.
func (a *App) FindUser(id string) (User, Role, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	u, role := a.users.FindByID(id)
	if u == nil {
		return User{}, "", fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return sanitizeUser(u), role, nil
}

// Users lists a role partition as sanitized copies.
func (a *App) Users(role Role) []User {
	a.mu.RLock()
	defer a.mu.RUnlock()

	part := a.users.Users(role)
	out := make([]User, 0, len(part))
	for _, u := range part {
		out = append(out, sanitizeUser(u))
	}
	return out
}

func sanitizeUser(u *User) User {
	cp := *u
	cp.Password = ""
	cp.PasswordHash = ""
	return cp
}

// ---------------------------------------------------------------------------
// Catalog management
// ---------------------------------------------------------------------------

// AddBook adds a book to the category partition and commits.
func (a *App) AddBook(cat Category, spec Book) (Book, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, err := a.books.AddBook(cat, &spec)
	if err != nil {
		return Book{}, err
	}
	if err := a.commit(); err != nil {
		return *b, err
	}
	return *b, nil
}

// DeleteBook removes a book unless an open transaction still references it.
func (a *App) DeleteBook(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if open := a.ledger.OpenByBook(id); len(open) > 0 {
		return fmt.Errorf("book %q is borrowed: %w", id, ErrConflict)
	}
	if err := a.books.remove(id); err != nil {
		return err
	}
	return a.commit()
}

// Books returns copies of the books visible to role, filtered by an optional
// case-insensitive title/author query.
func (a *App) Books(role Role, query string) []Book {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []Book
	for b := range a.books.Search(query, CategoriesFor(role)...) {
		out = append(out, *b)
	}
	return out
}

// FindBook returns a copy of the book with the given id, any category.
func (a *App) FindBook(id string) (Book, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	b, _ := a.books.Find(id)
	if b == nil {
		return Book{}, fmt.Errorf("book %q: %w", id, ErrNotFound)
	}
	return *b, nil
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// Borrow opens a transaction for (user, book): at most one open borrow per
// pair, never more open borrows than copies. The availability decrement and
// the ledger append happen together under the lock, then commit.
func (a *App) Borrow(userID string, role Role, bookID string) (Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user := a.findUser(userID, role)
	if user == nil {
		return Transaction{}, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}

	book, cat := a.books.Find(bookID)
	if book == nil || !categoryVisible(cat, role) {
		return Transaction{}, fmt.Errorf("book %q: %w", bookID, ErrNotFound)
	}
	if book.Available <= 0 {
		return Transaction{}, fmt.Errorf("book %q: %w", bookID, ErrInsufficientCopies)
	}
	if a.ledger.OpenFor(userID, bookID) != nil {
		return Transaction{}, fmt.Errorf("book %q: %w", bookID, ErrDuplicateBorrow)
	}

	now := a.now()
	t := &Transaction{
		ID:         a.ledger.NextID(),
		UserID:     user.ID,
		UserName:   user.Name,
		BookID:     book.ID,
		BookTitle:  book.Title,
		BorrowDate: FormatDate(now),
		DueDate:    FormatDate(now.AddDate(0, 0, LoanPeriodDays)),
		Status:     StatusBorrowed,
		Fine:       0,
	}

	if err := a.books.adjustAvailable(book.ID, -1); err != nil {
		return Transaction{}, err
	}
	a.ledger.Append(t)

	if err := a.commit(); err != nil {
		return *t, err
	}
	return *t, nil
}

// Return closes the caller's open transaction: sets the return date, computes
// the fine, and gives the copy back to whichever category list holds the
// book. Returning an already-returned transaction fails with ErrNotBorrowed
// and changes nothing.
func (a *App) Return(userID string, transactionID int) (Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.ledger.Find(transactionID)
	if t == nil || t.UserID != userID {
		return Transaction{}, fmt.Errorf("transaction %d: %w", transactionID, ErrNotFound)
	}
	if !t.Open() {
		return Transaction{}, fmt.Errorf("transaction %d: %w", transactionID, ErrNotBorrowed)
	}

	due, err := ParseDate(t.DueDate)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %d: bad due date %q: %w", transactionID, t.DueDate, err)
	}

	now := a.now()
	returned := FormatDate(now)
	t.Status = StatusReturned
	t.ReturnDate = &returned
	t.Fine = ComputeFine(due, now)

	if err := a.books.adjustAvailable(t.BookID, +1); err != nil {
		return Transaction{}, err
	}

	if err := a.commit(); err != nil {
		return *t, err
	}
	return *t, nil
}

// WhoHolds returns copies of all currently open transactions for a book. The
// shell uses it to surface borrower contact details; no mutation capability
// is exposed through it.
func (a *App) WhoHolds(bookID string) []Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return copyTransactions(a.ledger.OpenByBook(bookID))
}

// UserTransactions returns copies of a user's full history in log order.
func (a *App) UserTransactions(userID string) []Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return copyTransactions(a.ledger.ByUser(userID))
}

// AllTransactions returns copies of the whole ledger in log order.
func (a *App) AllTransactions() []Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return copyTransactions(a.ledger.Transactions)
}

func copyTransactions(list []*Transaction) []Transaction {
	out := make([]Transaction, 0, len(list))
	for _, t := range list {
		out = append(out, *t)
	}
	return out
}

func categoryVisible(cat Category, role Role) bool {
	for _, c := range CategoriesFor(role) {
		if c == cat {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers    int
	TotalBooks    int
	ActiveBorrows int
	TotalFines    int
}

// Stats computes the dashboard counters from a consistent snapshot.
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Stats{
		TotalUsers: len(a.users.Students) + len(a.users.Teachers),
		TotalBooks: len(a.books.StudentBooks) + len(a.books.TeacherBooks),
	}
	for _, t := range a.ledger.Transactions {
		if t.Open() {
			s.ActiveBorrows++
		}
		s.TotalFines += t.Fine
	}
	return s
}
