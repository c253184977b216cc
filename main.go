package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"bookflow/library"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultDBFile = "bookflow.db"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:          "bookflow",
		Short:        "BookFlow library circulation manager",
		Long:         "BookFlow tracks books, borrowers and late fees for a single library.\nRunning without arguments starts the interactive shell.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				slog.Warn("could not load .env", "err", err)
			}
			if dataPath == "" {
				dataPath = os.Getenv("BOOKFLOW_DB")
			}
			if dataPath == "" {
				dataPath = defaultDBFile
			}

			store, err := library.NewStore(dataPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			app, err := library.NewApp(store)
			if err != nil {
				store.Close()
				return err
			}
			defer app.Close()

			runShell(app)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "path to the data store (overrides BOOKFLOW_DB)")
	return cmd
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// session is the shell's view of who is logged in. The core takes the acting
// user explicitly on every call; only the shell remembers it between prompts.
type session struct {
	user library.User
	role library.Role
}

func runShell(app *library.App) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Welcome to BookFlow!")
	for {
		fmt.Println("\nCommands: login, register, exit")
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "login":
			if sess := handleLogin(scanner, app); sess != nil {
				runMenu(scanner, app, sess)
			}
		case "register":
			handleRegister(scanner, app)
		case "exit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown command.")
		}
	}
}

func runMenu(sc *bufio.Scanner, app *library.App, sess *session) {
	fmt.Printf("Logged in as %s (%s)\n", sess.user.Name, sess.role)
	for {
		if sess.role == library.RoleAdmin {
			fmt.Println("\nCommands: books, search, add book, delete book, users, add user, edit user, delete user, transactions, stats, who has, logout")
		} else {
			fmt.Println("\nCommands: books, search, borrow, return, my transactions, who has, logout")
		}
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		cmd := strings.TrimSpace(sc.Text())

		switch cmd {
		case "books":
			printBooks(app.Books(sess.role, ""))
		case "search":
			handleSearch(sc, app, sess)
		case "borrow":
			handleBorrow(sc, app, sess)
		case "return":
			handleReturn(sc, app, sess)
		case "my transactions":
			handleMyTransactions(app, sess)
		case "who has":
			handleWhoHas(sc, app)
		case "logout":
			return
		default:
			if sess.role == library.RoleAdmin {
				if handleAdminCommand(sc, app, cmd) {
					continue
				}
			}
			fmt.Println("Unknown command.")
		}
	}
}

func handleAdminCommand(sc *bufio.Scanner, app *library.App, cmd string) bool {
	switch cmd {
	case "add book":
		handleAddBook(sc, app)
	case "delete book":
		handleDeleteBook(sc, app)
	case "users":
		handleListUsers(app)
	case "add user":
		handleAddUser(sc, app)
	case "edit user":
		handleEditUser(sc, app)
	case "delete user":
		handleDeleteUser(sc, app)
	case "transactions":
		printTransactions(app.AllTransactions())
	case "stats":
		handleStats(app)
	default:
		return false
	}
	return true
}

// ------------------ Sessions ------------------

func handleLogin(sc *bufio.Scanner, app *library.App) *session {
	role, ok := promptRole(sc, true)
	if !ok {
		return nil
	}

	fmt.Print("Username: ")
	if !sc.Scan() {
		return nil
	}
	username := strings.TrimSpace(sc.Text())

	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return nil
	}

	user, err := app.Login(username, password, role)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			fmt.Println("Invalid credentials.")
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		return nil
	}
	return &session{user: user, role: role}
}

func handleRegister(sc *bufio.Scanner, app *library.App) {
	role, ok := promptRole(sc, false)
	if !ok {
		return
	}

	candidate := library.User{}
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Full name: ", &candidate.Name},
		{"Username (min 3 chars): ", &candidate.Username},
		{"ID (e.g. E25CSEU1187 for students, T25CSED101 for teachers): ", &candidate.ID},
		{"Contact (optional): ", &candidate.Contact},
		{"Email (optional): ", &candidate.Email},
	}
	for _, f := range fields {
		fmt.Print(f.prompt)
		if !sc.Scan() {
			return
		}
		*f.dst = strings.TrimSpace(sc.Text())
	}

	password, err := readPassword("Password (min 6 chars): ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if password != confirm {
		fmt.Println("Passwords do not match.")
		return
	}
	candidate.Password = password

	user, err := app.Register(role, candidate)
	if err != nil {
		printCoreError(err)
		return
	}
	fmt.Printf("Account created. You can now login as '%s'.\n", user.Username)
}

func promptRole(sc *bufio.Scanner, allowAdmin bool) (library.Role, bool) {
	if allowAdmin {
		fmt.Print("Role (student/teacher/admin): ")
	} else {
		fmt.Print("Role (student/teacher): ")
	}
	if !sc.Scan() {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "student":
		return library.RoleStudent, true
	case "teacher":
		return library.RoleTeacher, true
	case "admin":
		if allowAdmin {
			return library.RoleAdmin, true
		}
	}
	fmt.Println("Invalid role.")
	return "", false
}

// ------------------ Circulation ------------------

func handleSearch(sc *bufio.Scanner, app *library.App, sess *session) {
	fmt.Print("Query: ")
	if !sc.Scan() {
		return
	}
	query := strings.TrimSpace(sc.Text())

	books := app.Books(sess.role, query)
	if len(books) == 0 {
		fmt.Printf("No books found matching '%s'.\n", query)
		return
	}
	fmt.Printf("Found %d book(s) matching '%s':\n", len(books), query)
	printBooks(books)
}

func handleBorrow(sc *bufio.Scanner, app *library.App, sess *session) {
	fmt.Print("Book ID: ")
	if !sc.Scan() {
		return
	}
	bookID := strings.ToUpper(strings.TrimSpace(sc.Text()))

	t, err := app.Borrow(sess.user.ID, sess.role, bookID)
	if err != nil {
		printCoreError(err)
		return
	}
	fmt.Printf("Borrowed '%s'. Due date: %s\n", t.BookTitle, t.DueDate)
}

func handleReturn(sc *bufio.Scanner, app *library.App, sess *session) {
	var open []library.Transaction
	for _, t := range app.UserTransactions(sess.user.ID) {
		if t.Status == library.StatusBorrowed {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		fmt.Println("You have no active borrows.")
		return
	}

	fmt.Println("Active borrows:")
	for _, t := range open {
		fmt.Printf("  [%d] %s (due %s)\n", t.ID, t.BookTitle, t.DueDate)
	}
	fmt.Print("Transaction ID: ")
	if !sc.Scan() {
		return
	}
	id, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		fmt.Printf("Invalid transaction ID: %s\n", sc.Text())
		return
	}

	t, err := app.Return(sess.user.ID, id)
	if err != nil {
		printCoreError(err)
		return
	}
	fmt.Printf("Returned '%s'.\n", t.BookTitle)
	if t.Fine > 0 {
		fmt.Printf("Late return fine: %d\n", t.Fine)
	}
}

func handleMyTransactions(app *library.App, sess *session) {
	transactions := app.UserTransactions(sess.user.ID)
	if len(transactions) == 0 {
		fmt.Println("No transactions yet.")
		return
	}
	printTransactions(transactions)
}

func handleWhoHas(sc *bufio.Scanner, app *library.App) {
	fmt.Print("Book ID: ")
	if !sc.Scan() {
		return
	}
	bookID := strings.ToUpper(strings.TrimSpace(sc.Text()))

	holders := app.WhoHolds(bookID)
	if len(holders) == 0 {
		fmt.Println("Currently available — nobody holds it.")
		return
	}
	fmt.Printf("Currently borrowed by %d user(s):\n", len(holders))
	for _, t := range holders {
		fmt.Printf("  %s (ID: %s), due %s", t.UserName, t.UserID, t.DueDate)
		if user, _, err := app.FindUser(t.UserID); err == nil {
			if user.Contact != library.NotProvided {
				fmt.Printf(", phone %s", user.Contact)
			}
			if user.Email != library.NotProvided {
				fmt.Printf(", email %s", user.Email)
			}
		}
		fmt.Println()
	}
}

// ------------------ Admin ------------------

func handleAddBook(sc *bufio.Scanner, app *library.App) {
	spec := library.Book{}
	fmt.Print("Book ID: ")
	if !sc.Scan() {
		return
	}
	spec.ID = strings.TrimSpace(sc.Text())

	fmt.Print("Title: ")
	if !sc.Scan() {
		return
	}
	spec.Title = strings.TrimSpace(sc.Text())

	fmt.Print("Author: ")
	if !sc.Scan() {
		return
	}
	spec.Author = strings.TrimSpace(sc.Text())

	fmt.Print("Copies: ")
	if !sc.Scan() {
		return
	}
	copies, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		fmt.Printf("Invalid copy count: %s\n", sc.Text())
		return
	}
	spec.Copies = copies

	fmt.Print("Category (student/teacher): ")
	if !sc.Scan() {
		return
	}
	cat := library.CategoryStudent
	if strings.ToLower(strings.TrimSpace(sc.Text())) == "teacher" {
		cat = library.CategoryTeacher
	}

	book, err := app.AddBook(cat, spec)
	if err != nil {
		printCoreError(err)
		return
	}
	fmt.Printf("Added book %s: '%s' by %s (%d copies).\n", book.ID, book.Title, book.Author, book.Copies)
}

func handleDeleteBook(sc *bufio.Scanner, app *library.App) {
	fmt.Print("Book ID: ")
	if !sc.Scan() {
		return
	}
	bookID := strings.ToUpper(strings.TrimSpace(sc.Text()))

	if err := app.DeleteBook(bookID); err != nil {
		printCoreError(err)
		return
	}
	fmt.Println("Book deleted.")
}

func handleListUsers(app *library.App) {
	fmt.Printf("%-14s %-16s %-25s %-9s %-18s %s\n", "ID", "Username", "Name", "Role", "Contact", "Email")
	fmt.Println(strings.Repeat("-", 100))
	for _, role := range []library.Role{library.RoleStudent, library.RoleTeacher} {
		for _, u := range app.Users(role) {
			fmt.Printf("%-14s %-16s %-25s %-9s %-18s %s\n",
				u.ID, u.Username, truncateString(u.Name, 25), role, truncateString(u.Contact, 18), u.Email)
		}
	}
}

func handleAddUser(sc *bufio.Scanner, app *library.App) {
	// Same path as self-service registration, driven by the admin.
	handleRegister(sc, app)
}

func handleEditUser(sc *bufio.Scanner, app *library.App) {
	role, ok := promptRole(sc, false)
	if !ok {
		return
	}
	fmt.Print("User ID: ")
	if !sc.Scan() {
		return
	}
	id := strings.ToUpper(strings.TrimSpace(sc.Text()))

	patch := library.UserPatch{}
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"New name (blank to keep): ", &patch.Name},
		{"New username (blank to keep): ", &patch.Username},
		{"New contact (blank to keep): ", &patch.Contact},
		{"New email (blank to keep): ", &patch.Email},
	}
	for _, f := range fields {
		fmt.Print(f.prompt)
		if !sc.Scan() {
			return
		}
		*f.dst = strings.TrimSpace(sc.Text())
	}

	password, err := readPassword("New password (blank to keep): ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	patch.Password = password

	user, err := app.UpdateUser(id, role, patch)
	if err != nil {
		printCoreError(err)
		return
	}
	fmt.Printf("User %s updated.\n", user.ID)
}

func handleDeleteUser(sc *bufio.Scanner, app *library.App) {
	role, ok := promptRole(sc, false)
	if !ok {
		return
	}
	fmt.Print("User ID: ")
	if !sc.Scan() {
		return
	}
	id := strings.ToUpper(strings.TrimSpace(sc.Text()))

	if err := app.DeleteUser(id, role); err != nil {
		printCoreError(err)
		return
	}
	fmt.Println("User deleted.")
}

func handleStats(app *library.App) {
	stats := app.Stats()
	fmt.Printf("Total users:    %d\n", stats.TotalUsers)
	fmt.Printf("Total books:    %d\n", stats.TotalBooks)
	fmt.Printf("Active borrows: %d\n", stats.ActiveBorrows)
	fmt.Printf("Total fines:    %d\n", stats.TotalFines)
}

// ------------------ Output helpers ------------------

func printBooks(books []library.Book) {
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	fmt.Printf("%-6s %-35s %-28s %s\n", "ID", "Title", "Author", "Available")
	fmt.Println(strings.Repeat("-", 85))
	for _, b := range books {
		fmt.Printf("%-6s %-35s %-28s %d/%d\n",
			b.ID, truncateString(b.Title, 35), truncateString(b.Author, 28), b.Available, b.Copies)
	}
}

func printTransactions(transactions []library.Transaction) {
	if len(transactions) == 0 {
		fmt.Println("No transactions yet.")
		return
	}
	fmt.Printf("%-5s %-20s %-30s %-11s %-11s %-11s %-9s %s\n",
		"ID", "User", "Book", "Borrowed", "Due", "Returned", "Status", "Fine")
	fmt.Println(strings.Repeat("-", 115))
	for _, t := range transactions {
		returned := "-"
		if t.ReturnDate != nil {
			returned = *t.ReturnDate
		}
		fmt.Printf("%-5d %-20s %-30s %-11s %-11s %-11s %-9s %d\n",
			t.ID, truncateString(t.UserName, 20), truncateString(t.BookTitle, 30),
			t.BorrowDate, t.DueDate, returned, t.Status, t.Fine)
	}
}

func printCoreError(err error) {
	switch {
	case errors.Is(err, library.ErrInvalidFormat):
		fmt.Println("Invalid ID format.")
	case errors.Is(err, library.ErrDuplicateKey):
		fmt.Println("Username or ID already exists.")
	case errors.Is(err, library.ErrInsufficientCopies):
		fmt.Println("No copies available.")
	case errors.Is(err, library.ErrDuplicateBorrow):
		fmt.Println("You already have this book.")
	case errors.Is(err, library.ErrNotBorrowed):
		fmt.Println("That transaction is not an active borrow.")
	case errors.Is(err, library.ErrConflict):
		fmt.Printf("Cannot delete: %v\n", err)
	case errors.Is(err, library.ErrIOFailure):
		fmt.Printf("Warning: change applied in memory but could not be saved: %v\n", err)
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
