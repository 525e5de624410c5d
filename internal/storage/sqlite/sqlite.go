// Package sqlite is a single-file Storage backend for running the service
// without a ClickHouse instance.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"libstats/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Initialize creates the schema if it does not exist yet
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			genre TEXT NOT NULL,
			pages INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			name TEXT PRIMARY KEY,
			read_pages INTEGER NOT NULL,
			current_book TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS archive (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT NOT NULL,
			book_title TEXT NOT NULL,
			taken_at TIMESTAMP NOT NULL,
			returned_at TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// CreateBook adds a book to the catalog
func (s *SQLiteDB) CreateBook(ctx context.Context, book models.Book) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO books (title, author, genre, pages) VALUES (?, ?, ?, ?)`,
		book.Title, book.Author, book.Genre.String(), book.Pages)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// CreateUser registers a reader
func (s *SQLiteDB) CreateUser(ctx context.Context, name string, readPages int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (name, read_pages) VALUES (?, ?)`,
		name, readPages)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// RecordLoan appends a lending record and marks the book as the user's current one
func (s *SQLiteDB) RecordLoan(ctx context.Context, userName, bookTitle string, takenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO archive (user_name, book_title, taken_at) VALUES (?, ?, ?)`,
		userName, bookTitle, takenAt)
	if err != nil {
		return fmt.Errorf("failed to record loan: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET current_book = ? WHERE name = ?`, bookTitle, userName)
	if err != nil {
		return fmt.Errorf("failed to update current book: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown user: %s", userName)
	}
	return nil
}

// RecordReturn closes the oldest open lending record for the user and book
func (s *SQLiteDB) RecordReturn(ctx context.Context, userName, bookTitle string, returnedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE archive SET returned_at = ?
		WHERE id = (
			SELECT id FROM archive
			WHERE user_name = ? AND book_title = ? AND returned_at IS NULL
			ORDER BY id LIMIT 1
		)`, returnedAt, userName, bookTitle)
	if err != nil {
		return fmt.Errorf("failed to record return: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record return: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no open loan of %q for user %s", bookTitle, userName)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE users SET current_book = NULL WHERE name = ? AND current_book = ?`,
		userName, bookTitle)
	if err != nil {
		return fmt.Errorf("failed to clear current book: %w", err)
	}
	return nil
}

// LoadLibrary materializes the full dataset with resolved references
func (s *SQLiteDB) LoadLibrary(ctx context.Context) (*models.Library, error) {
	catalog, bookByTitle, err := s.loadBooks(ctx)
	if err != nil {
		return nil, err
	}

	userByName, err := s.loadUsers(ctx, bookByTitle)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT user_name, book_title, taken_at, returned_at FROM archive ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	defer rows.Close()

	var archive []models.ArchivedData
	for rows.Next() {
		var (
			userName, bookTitle string
			takenAt             time.Time
			returnedAt          sql.NullTime
		)
		if err := rows.Scan(&userName, &bookTitle, &takenAt, &returnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		book, ok := bookByTitle[bookTitle]
		if !ok {
			return nil, fmt.Errorf("archive references unknown book: %s", bookTitle)
		}
		user, ok := userByName[userName]
		if !ok {
			return nil, fmt.Errorf("archive references unknown user: %s", userName)
		}
		rec := models.ArchivedData{User: user, Book: book, TakenAt: takenAt}
		if returnedAt.Valid {
			ret := returnedAt.Time
			rec.ReturnedAt = &ret
		}
		archive = append(archive, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}

	return &models.Library{Books: catalog, Archive: archive}, nil
}

func (s *SQLiteDB) loadBooks(ctx context.Context) ([]models.Book, map[string]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, author, genre, pages FROM books ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load books: %w", err)
	}
	defer rows.Close()

	var catalog []models.Book
	for rows.Next() {
		var (
			title, author, genreName string
			pages                    int
		)
		if err := rows.Scan(&title, &author, &genreName, &pages); err != nil {
			return nil, nil, fmt.Errorf("failed to scan book: %w", err)
		}
		genre, err := models.ParseGenre(genreName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load books: %w", err)
		}
		catalog = append(catalog, models.Book{Title: title, Author: author, Genre: genre, Pages: pages})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to load books: %w", err)
	}

	bookByTitle := make(map[string]*models.Book, len(catalog))
	for i := range catalog {
		bookByTitle[catalog[i].Title] = &catalog[i]
	}
	return catalog, bookByTitle, nil
}

func (s *SQLiteDB) loadUsers(ctx context.Context, bookByTitle map[string]*models.Book) (map[string]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, read_pages, current_book FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*models.User)
	for rows.Next() {
		var (
			name        string
			readPages   int
			currentBook sql.NullString
		)
		if err := rows.Scan(&name, &readPages, &currentBook); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user := &models.User{Name: name, ReadPages: readPages}
		if currentBook.Valid {
			user.CurrentBook = bookByTitle[currentBook.String]
		}
		users[name] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
