package main

import (
	"fmt"
	"os"
	"strings"

	"bookflow/library"
)

const dbFile = "bookflow.db"

// seed wipes any existing store and recreates it with the default demo
// users, both book collections, and an empty ledger.
func main() {
	fmt.Println("Cleaning up existing database files...")
	dbFiles := []string{dbFile, dbFile + "-shm", dbFile + "-wal"}
	for _, file := range dbFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Println("Database cleanup complete.")

	store, err := library.NewStore(dbFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Loading an empty store seeds the defaults and commits them.
	users, books, _, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding store: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nSeed complete!\n")
	fmt.Printf("Users: %d students, %d teachers, %d admin\n",
		len(users.Students), len(users.Teachers), len(users.Admins))

	fmt.Println("\nSeeded books:")
	fmt.Printf("%-6s %-40s %-30s %s\n", "ID", "Title", "Author", "Copies")
	fmt.Println(strings.Repeat("-", 85))
	for _, list := range [][]*library.Book{books.StudentBooks, books.TeacherBooks} {
		for _, b := range list {
			fmt.Printf("%-6s %-40s %-30s %d\n", b.ID, truncateString(b.Title, 40), truncateString(b.Author, 30), b.Copies)
		}
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
