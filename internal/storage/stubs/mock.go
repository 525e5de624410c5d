package stubs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"libstats/internal/models"
)

type loanRow struct {
	userName   string
	bookTitle  string
	takenAt    time.Time
	returnedAt *time.Time
}

type userRow struct {
	name        string
	readPages   int
	currentBook string // empty when the user holds nothing
}

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu    sync.RWMutex
	books []models.Book // catalog order
	users map[string]*userRow
	loans []loanRow // lending order
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{users: make(map[string]*userRow)}
}

// Initialize is a no-op; the mock starts empty and is seeded by tests.
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// CreateBook adds a book to the catalog
func (m *MockDB) CreateBook(ctx context.Context, book models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.books = append(m.books, book)
	return nil
}

// CreateUser registers a reader
func (m *MockDB) CreateUser(ctx context.Context, name string, readPages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[name] = &userRow{name: name, readPages: readPages}
	return nil
}

// RecordLoan appends a lending record and sets the user's current book
func (m *MockDB) RecordLoan(ctx context.Context, userName, bookTitle string, takenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userName]
	if !ok {
		return fmt.Errorf("unknown user: %s", userName)
	}
	if _, err := m.findBook(bookTitle); err != nil {
		return err
	}

	m.loans = append(m.loans, loanRow{userName: userName, bookTitle: bookTitle, takenAt: takenAt})
	user.currentBook = bookTitle
	return nil
}

// RecordReturn closes the open lending record and clears the current book
func (m *MockDB) RecordReturn(ctx context.Context, userName, bookTitle string, returnedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userName]
	if !ok {
		return fmt.Errorf("unknown user: %s", userName)
	}

	// Close the oldest open loan for this user and book.
	for i := range m.loans {
		loan := &m.loans[i]
		if loan.userName == userName && loan.bookTitle == bookTitle && loan.returnedAt == nil {
			ret := returnedAt
			loan.returnedAt = &ret
			if user.currentBook == bookTitle {
				user.currentBook = ""
			}
			return nil
		}
	}
	return fmt.Errorf("no open loan of %q for user %s", bookTitle, userName)
}

// LoadLibrary materializes the snapshot with resolved references
func (m *MockDB) LoadLibrary(ctx context.Context) (*models.Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	catalog := make([]models.Book, len(m.books))
	copy(catalog, m.books)

	bookByTitle := make(map[string]*models.Book, len(catalog))
	for i := range catalog {
		bookByTitle[catalog[i].Title] = &catalog[i]
	}

	userByName := make(map[string]*models.User, len(m.users))
	for name, row := range m.users {
		user := &models.User{Name: name, ReadPages: row.readPages}
		if row.currentBook != "" {
			user.CurrentBook = bookByTitle[row.currentBook]
		}
		userByName[name] = user
	}

	archive := make([]models.ArchivedData, 0, len(m.loans))
	for _, loan := range m.loans {
		book, ok := bookByTitle[loan.bookTitle]
		if !ok {
			return nil, fmt.Errorf("archive references unknown book: %s", loan.bookTitle)
		}
		user, ok := userByName[loan.userName]
		if !ok {
			return nil, fmt.Errorf("archive references unknown user: %s", loan.userName)
		}
		var returnedAt *time.Time
		if loan.returnedAt != nil {
			ret := *loan.returnedAt
			returnedAt = &ret
		}
		archive = append(archive, models.ArchivedData{
			User:       user,
			Book:       book,
			TakenAt:    loan.takenAt,
			ReturnedAt: returnedAt,
		})
	}

	return &models.Library{Books: catalog, Archive: archive}, nil
}

func (m *MockDB) findBook(title string) (*models.Book, error) {
	for i := range m.books {
		if m.books[i].Title == title {
			return &m.books[i], nil
		}
	}
	return nil, fmt.Errorf("unknown book: %s", title)
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
