package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"libstats/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseDB struct {
	conn clickhouse.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// Tables are managed via migrations (see migrations/ directory)
	return nil
}

// CreateBook adds a book to the catalog
func (db *ClickHouseDB) CreateBook(ctx context.Context, book models.Book) error {
	err := db.conn.Exec(ctx, `INSERT INTO books (title, author, genre, pages) VALUES (?, ?, ?, ?)`,
		book.Title, book.Author, book.Genre.String(), int32(book.Pages))
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// CreateUser registers a reader
func (db *ClickHouseDB) CreateUser(ctx context.Context, name string, readPages int) error {
	err := db.conn.Exec(ctx, `INSERT INTO users (name, read_pages) VALUES (?, ?)`,
		name, int32(readPages))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// RecordLoan appends a lending event. Tables are insert-only: the open loan
// stays open until a matching row lands in returns.
func (db *ClickHouseDB) RecordLoan(ctx context.Context, userName, bookTitle string, takenAt time.Time) error {
	err := db.conn.Exec(ctx, `INSERT INTO loans (user_name, book_title, taken_at) VALUES (?, ?, ?)`,
		userName, bookTitle, takenAt)
	if err != nil {
		return fmt.Errorf("failed to record loan: %w", err)
	}
	return nil
}

// RecordReturn appends a return event; LoadLibrary matches it to the oldest
// open loan for the same user and book.
func (db *ClickHouseDB) RecordReturn(ctx context.Context, userName, bookTitle string, returnedAt time.Time) error {
	err := db.conn.Exec(ctx, `INSERT INTO returns (user_name, book_title, returned_at) VALUES (?, ?, ?)`,
		userName, bookTitle, returnedAt)
	if err != nil {
		return fmt.Errorf("failed to record return: %w", err)
	}
	return nil
}

// LoadLibrary materializes the full dataset with resolved references
func (db *ClickHouseDB) LoadLibrary(ctx context.Context) (*models.Library, error) {
	catalog, bookByTitle, err := db.loadBooks(ctx)
	if err != nil {
		return nil, err
	}

	userByName, err := db.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	archive, err := db.loadArchive(ctx, bookByTitle, userByName)
	if err != nil {
		return nil, err
	}

	return &models.Library{Books: catalog, Archive: archive}, nil
}

func (db *ClickHouseDB) loadBooks(ctx context.Context) ([]models.Book, map[string]*models.Book, error) {
	rows, err := db.conn.Query(ctx, `SELECT title, author, genre, pages FROM books ORDER BY created_at`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load books: %w", err)
	}
	defer rows.Close()

	var catalog []models.Book
	for rows.Next() {
		var (
			title, author, genreName string
			pages                    int32
		)
		if err := rows.Scan(&title, &author, &genreName, &pages); err != nil {
			return nil, nil, fmt.Errorf("failed to scan book: %w", err)
		}
		genre, err := models.ParseGenre(genreName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load books: %w", err)
		}
		catalog = append(catalog, models.Book{Title: title, Author: author, Genre: genre, Pages: int(pages)})
	}

	bookByTitle := make(map[string]*models.Book, len(catalog))
	for i := range catalog {
		bookByTitle[catalog[i].Title] = &catalog[i]
	}
	return catalog, bookByTitle, nil
}

func (db *ClickHouseDB) loadUsers(ctx context.Context) (map[string]*models.User, error) {
	rows, err := db.conn.Query(ctx, `SELECT name, read_pages FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*models.User)
	for rows.Next() {
		var (
			name      string
			readPages int32
		)
		if err := rows.Scan(&name, &readPages); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[name] = &models.User{Name: name, ReadPages: int(readPages)}
	}
	return users, nil
}

type returnRow struct {
	userName   string
	bookTitle  string
	returnedAt time.Time
}

func (db *ClickHouseDB) loadArchive(ctx context.Context, bookByTitle map[string]*models.Book, userByName map[string]*models.User) ([]models.ArchivedData, error) {
	loanRows, err := db.conn.Query(ctx, `SELECT user_name, book_title, taken_at FROM loans ORDER BY taken_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	defer loanRows.Close()

	var archive []models.ArchivedData
	for loanRows.Next() {
		var (
			userName, bookTitle string
			takenAt             time.Time
		)
		if err := loanRows.Scan(&userName, &bookTitle, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		book, ok := bookByTitle[bookTitle]
		if !ok {
			return nil, fmt.Errorf("loan references unknown book: %s", bookTitle)
		}
		user, ok := userByName[userName]
		if !ok {
			return nil, fmt.Errorf("loan references unknown user: %s", userName)
		}
		archive = append(archive, models.ArchivedData{User: user, Book: book, TakenAt: takenAt})
	}

	returnRows, err := db.conn.Query(ctx, `SELECT user_name, book_title, returned_at FROM returns ORDER BY returned_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to load returns: %w", err)
	}
	defer returnRows.Close()

	var returns []returnRow
	for returnRows.Next() {
		var row returnRow
		if err := returnRows.Scan(&row.userName, &row.bookTitle, &row.returnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan return: %w", err)
		}
		returns = append(returns, row)
	}

	// Close loans oldest-first: each return event matches the oldest still
	// open loan of that user and book.
	for _, ret := range returns {
		for i := range archive {
			rec := &archive[i]
			if rec.User.Name == ret.userName && rec.Book.Title == ret.bookTitle && rec.ReturnedAt == nil {
				returnedAt := ret.returnedAt
				rec.ReturnedAt = &returnedAt
				break
			}
		}
	}

	// A user's current book is the one from their most recent open loan.
	for i := range archive {
		rec := archive[i]
		if rec.ReturnedAt == nil {
			rec.User.CurrentBook = rec.Book
		}
	}

	return archive, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
