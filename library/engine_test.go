package library

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	app, err := NewApp(store)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app, path
}

func reopenApp(t *testing.T, path string) *App {
	t.Helper()
	store, err := NewStore(path)
	require.NoError(t, err)
	app, err := NewApp(store)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func setClock(app *App, date string) {
	now, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	app.now = func() time.Time { return now }
}

// Seeded demo accounts used throughout.
const (
	studentID = "E25CSEU1187"
	teacherID = "T25CSED101"
)

func TestBorrowScenario(t *testing.T) {
	app, _ := newTestApp(t)
	setClock(app, "2024-01-01")

	book, err := app.AddBook(CategoryStudent, Book{ID: "B999", Title: "T", Author: "A", Copies: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, book.Available)

	tx, err := app.Borrow(studentID, RoleStudent, "B999")
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, tx.Status)
	assert.Equal(t, "2024-01-01", tx.BorrowDate)
	assert.Equal(t, "2024-01-15", tx.DueDate, "due date is borrow date plus 14 days")
	assert.Equal(t, 0, tx.Fine)
	assert.Nil(t, tx.ReturnDate)
	assert.Equal(t, "Sairam R", tx.UserName, "borrower name is snapshotted")

	book, err = app.FindBook("B999")
	require.NoError(t, err)
	assert.Equal(t, 1, book.Available)

	_, err = app.Borrow(studentID, RoleStudent, "B999")
	assert.ErrorIs(t, err, ErrDuplicateBorrow)

	// A second user can still take the remaining copy.
	_, err = app.Borrow("B24ECE0045", RoleStudent, "B999")
	require.NoError(t, err)

	_, err = app.Borrow(teacherID, RoleTeacher, "B999")
	assert.ErrorIs(t, err, ErrNotFound, "teachers do not see the student collection")
}

func TestBorrowInsufficientCopies(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := app.AddBook(CategoryStudent, Book{ID: "B998", Title: "T", Author: "A", Copies: 1})
	require.NoError(t, err)

	_, err = app.Borrow(studentID, RoleStudent, "B998")
	require.NoError(t, err)

	_, err = app.Borrow("B24ECE0045", RoleStudent, "B998")
	assert.ErrorIs(t, err, ErrInsufficientCopies)
}

func TestReturnComputesFine(t *testing.T) {
	app, _ := newTestApp(t)
	setClock(app, "2024-01-01")

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", tx.DueDate)

	// Three days late.
	setClock(app, "2024-01-18")
	tx, err = app.Return(studentID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, tx.Status)
	require.NotNil(t, tx.ReturnDate)
	assert.Equal(t, "2024-01-18", *tx.ReturnDate)
	assert.Equal(t, 30, tx.Fine)

	book, err := app.FindBook("B001")
	require.NoError(t, err)
	assert.Equal(t, book.Copies, book.Available)
}

func TestReturnOnTimeNoFine(t *testing.T) {
	app, _ := newTestApp(t)
	setClock(app, "2024-01-01")

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	require.NoError(t, err)

	setClock(app, "2024-01-15")
	tx, err = app.Return(studentID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tx.Fine, "returning on the due date costs nothing")
}

func TestReturnIdempotence(t *testing.T) {
	app, _ := newTestApp(t)

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	require.NoError(t, err)

	_, err = app.Return(studentID, tx.ID)
	require.NoError(t, err)
	before, err := app.FindBook("B001")
	require.NoError(t, err)

	_, err = app.Return(studentID, tx.ID)
	assert.ErrorIs(t, err, ErrNotBorrowed)

	after, err := app.FindBook("B001")
	require.NoError(t, err)
	assert.Equal(t, before.Available, after.Available, "a rejected return must not double-increment")
}

func TestReturnByThirdPartyRejected(t *testing.T) {
	app, _ := newTestApp(t)

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	require.NoError(t, err)

	_, err = app.Return("B24ECE0045", tx.ID)
	assert.ErrorIs(t, err, ErrNotFound, "only the borrower may return the transaction")
}

func TestAvailabilityInvariant(t *testing.T) {
	app, _ := newTestApp(t)

	// A mixed sequence of borrows and returns across users and categories.
	t1, err := app.Borrow(studentID, RoleStudent, "B004")
	require.NoError(t, err)
	_, err = app.Borrow("B24ECE0045", RoleStudent, "B004")
	require.NoError(t, err)
	t3, err := app.Borrow(teacherID, RoleTeacher, "T002")
	require.NoError(t, err)
	_, err = app.Return(studentID, t1.ID)
	require.NoError(t, err)
	_, err = app.Borrow(studentID, RoleStudent, "B004")
	require.NoError(t, err)
	_, err = app.Return(teacherID, t3.ID)
	require.NoError(t, err)

	for _, b := range app.Books(RoleAdmin, "") {
		open := len(app.WhoHolds(b.ID))
		assert.Equal(t, b.Copies-open, b.Available,
			"book %s: available must equal copies minus open borrows", b.ID)
	}

	// No (user, book) pair holds two open borrows at once.
	seen := map[string]bool{}
	for _, tx := range app.AllTransactions() {
		if tx.Status != StatusBorrowed {
			continue
		}
		key := tx.UserID + "/" + tx.BookID
		assert.False(t, seen[key], "duplicate open borrow for %s", key)
		seen[key] = true
	}
}

func TestDeleteBookGuard(t *testing.T) {
	app, _ := newTestApp(t)

	tx, err := app.Borrow(studentID, RoleStudent, "B002")
	require.NoError(t, err)

	err = app.DeleteBook("B002")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = app.Return(studentID, tx.ID)
	require.NoError(t, err)

	require.NoError(t, app.DeleteBook("B002"))
	_, err = app.FindBook("B002")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserGuard(t *testing.T) {
	app, _ := newTestApp(t)

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	require.NoError(t, err)

	err = app.DeleteUser(studentID, RoleStudent)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = app.Return(studentID, tx.ID)
	require.NoError(t, err)

	require.NoError(t, app.DeleteUser(studentID, RoleStudent))
	assert.Len(t, app.Users(RoleStudent), 1)
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Malformed student id fails before the store is touched.
	_, err := app.Register(RoleStudent, User{
		ID: "XYZ123", Username: "newuser", Password: "secret123", Name: "New",
	})
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Len(t, app.Users(RoleStudent), 2)

	// Duplicate username, case-insensitive.
	_, err = app.Register(RoleStudent, User{
		ID: "A11ABC1234", Username: "SAIRAM", Password: "secret123", Name: "Imposter",
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = app.Register(RoleStudent, User{
		ID: "A11ABC1234", Username: "ab", Password: "secret123", Name: "Short",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = app.Register(RoleStudent, User{
		ID: "A11ABC1234", Username: "newuser", Password: "short", Name: "Short",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// A valid candidate goes through, with the id upcased.
	u, err := app.Register(RoleStudent, User{
		ID: "a11abc1234", Username: "newuser", Password: "secret123", Name: "New",
	})
	require.NoError(t, err)
	assert.Equal(t, "A11ABC1234", u.ID)
}

func TestLoginUpgradesLegacyCredential(t *testing.T) {
	app, path := newTestApp(t)

	// The seeded demo accounts carry plaintext credentials.
	u, err := app.Login("sairam", "sairam123", RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, studentID, u.ID)

	// After the first login the stored record is a hash, durably.
	app2 := reopenApp(t, path)
	stored := app2.users.Users(RoleStudent)[0]
	assert.Empty(t, stored.Password, "plaintext is gone after upgrade")
	assert.NotEmpty(t, stored.PasswordHash)

	// The same secret still works against the upgraded record.
	_, err = app2.Login("sairam", "sairam123", RoleStudent)
	require.NoError(t, err)

	_, err = app2.Login("sairam", "wrong", RoleStudent)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// An edit cannot rename a user onto another account's username.
	_, err := app.UpdateUser("B24ECE0045", RoleStudent, UserPatch{Username: "sairam"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	seen := map[string]int{}
	for _, u := range app.Users(RoleStudent) {
		seen[strings.ToLower(u.Username)]++
	}
	assert.Equal(t, 1, seen["sairam"], "usernames stay unique within the partition")

	// Patched credentials are held to the registration floors.
	_, err = app.UpdateUser("B24ECE0045", RoleStudent, UserPatch{Username: "ab"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = app.UpdateUser("B24ECE0045", RoleStudent, UserPatch{Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	u, err := app.UpdateUser("B24ECE0045", RoleStudent, UserPatch{Username: "student_two"})
	require.NoError(t, err)
	assert.Equal(t, "student_two", u.Username)
}

func TestCommitFailureKeepsMemoryAuthoritative(t *testing.T) {
	app, _ := newTestApp(t)
	setClock(app, "2024-01-01")

	// Pull the store out from under the engine so every commit fails.
	require.NoError(t, app.store.Close())

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, StatusBorrowed, tx.Status, "the mutated result comes back with the error")
	assert.Equal(t, "2024-01-15", tx.DueDate)

	// The in-memory mutation stands: availability is down and the borrow is open.
	book, err := app.FindBook("B001")
	require.NoError(t, err)
	assert.Equal(t, book.Copies-1, book.Available)
	require.Len(t, app.WhoHolds("B001"), 1)

	got, err := app.Return(studentID, tx.ID)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, StatusReturned, got.Status)

	// A legacy-upgrade login still admits the verified user.
	u, err := app.Login("sairam", "sairam123", RoleStudent)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, studentID, u.ID)
}

func TestWhoHolds(t *testing.T) {
	app, _ := newTestApp(t)

	assert.Empty(t, app.WhoHolds("B005"))

	_, err := app.Borrow(studentID, RoleStudent, "B005")
	require.NoError(t, err)
	_, err = app.Borrow("B24ECE0045", RoleStudent, "B005")
	require.NoError(t, err)

	holders := app.WhoHolds("B005")
	require.Len(t, holders, 2)
	assert.Equal(t, studentID, holders[0].UserID)

	// Contact details for the shell to surface.
	user, role, err := app.FindUser(holders[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, role)
	assert.Equal(t, "+91 9876543210", user.Contact)
	assert.Empty(t, user.PasswordHash, "lookups never leak credentials")
}

func TestStats(t *testing.T) {
	app, _ := newTestApp(t)
	setClock(app, "2024-01-01")

	tx, err := app.Borrow(studentID, RoleStudent, "B001")
	require.NoError(t, err)
	_, err = app.Borrow(teacherID, RoleTeacher, "T001")
	require.NoError(t, err)

	setClock(app, "2024-01-20") // five days late
	_, err = app.Return(studentID, tx.ID)
	require.NoError(t, err)

	stats := app.Stats()
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 8, stats.TotalBooks)
	assert.Equal(t, 1, stats.ActiveBorrows)
	assert.Equal(t, 50, stats.TotalFines)
}

func TestStateSurvivesRestart(t *testing.T) {
	app, path := newTestApp(t)
	setClock(app, "2024-03-01")

	tx, err := app.Borrow(studentID, RoleStudent, "B003")
	require.NoError(t, err)

	app2 := reopenApp(t, path)
	book, err := app2.FindBook("B003")
	require.NoError(t, err)
	assert.Equal(t, 1, book.Available)

	transactions := app2.UserTransactions(studentID)
	require.Len(t, transactions, 1)
	assert.Equal(t, tx.ID, transactions[0].ID)
	assert.Equal(t, StatusBorrowed, transactions[0].Status)

	// The reopened engine can close the loan it did not create.
	setClock(app2, "2024-03-10")
	_, err = app2.Return(studentID, tx.ID)
	require.NoError(t, err)
}
