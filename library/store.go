package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the persistence gateway. The whole library state (users, books,
// transactions) is serialized into a single document and written wholesale
// under one key; there are no partial or incremental writes.
type Store struct {
	db *sql.DB

	putStmt *sql.Stmt
}

const (
	schemaVersion = 1
	documentKey   = "bookflow"
)

// document is the persisted wire shape.
type document struct {
	Users        *Identity      `json:"users"`
	Books        *Catalog       `json:"books"`
	Transactions []*Transaction `json:"transactions"`
}

// NewStore opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares the document upsert.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db}
	store.putStmt, err = db.Prepare(`INSERT INTO documents(key,value) VALUES(?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the prepared statement and closes the DB.
func (s *Store) Close() error {
	if s.putStmt != nil {
		s.putStmt.Close()
	}
	return s.db.Close()
}

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            key TEXT PRIMARY KEY,
            value BLOB NOT NULL
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// Load reads the durable document. A missing document is seeded with the
// default users and books plus an empty ledger, committed immediately. On
// read, user records lacking contact or email are patched with the
// "Not provided" sentinel; if anything was patched the document is
// recommitted so the migration runs once.
func (s *Store) Load() (*Identity, *Catalog, *Ledger, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT value FROM documents WHERE key=?`, documentKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		users, books, ledger := DefaultUsers(), DefaultBooks(), &Ledger{}
		if err := s.Commit(users, books, ledger); err != nil {
			return nil, nil, nil, err
		}
		return users, books, ledger, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read document: %w: %w", ErrIOFailure, err)
	}

	var doc document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, nil, nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Users == nil {
		doc.Users = DefaultUsers()
	}
	if doc.Books == nil {
		doc.Books = DefaultBooks()
	}
	ledger := &Ledger{Transactions: doc.Transactions}

	if migrateContactFields(doc.Users) {
		if err := s.Commit(doc.Users, doc.Books, ledger); err != nil {
			return nil, nil, nil, err
		}
	}
	return doc.Users, doc.Books, ledger, nil
}

// migrateContactFields patches legacy user records that predate the contact
// and email fields. Reports whether anything changed.
func migrateContactFields(users *Identity) bool {
	updated := false
	for _, part := range [][]*User{users.Students, users.Teachers, users.Admins} {
		for _, u := range part {
			if u.Contact == "" {
				u.Contact = NotProvided
				updated = true
			}
			if u.Email == "" {
				u.Email = NotProvided
				updated = true
			}
		}
	}
	return updated
}

// Commit serializes the three aggregates into one document and replaces the
// stored version wholesale. On failure the in-memory state stays the source
// of truth for the rest of the process; the error is surfaced, not retried.
func (s *Store) Commit(users *Identity, books *Catalog, ledger *Ledger) error {
	transactions := ledger.Transactions
	if transactions == nil {
		transactions = []*Transaction{}
	}
	blob, err := json.Marshal(document{
		Users:        users,
		Books:        books,
		Transactions: transactions,
	})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.putStmt.Exec(documentKey, blob); err != nil {
		return fmt.Errorf("write document: %w: %w", ErrIOFailure, err)
	}
	return nil
}
