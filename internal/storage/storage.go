package storage

import (
	"context"
	"time"

	"libstats/internal/models"
)

// Storage defines the interface for data storage operations. The statistics
// engine never touches storage directly; callers load a Library snapshot and
// hand it to the engine.
type Storage interface {
	// Catalog and user operations
	CreateBook(ctx context.Context, book models.Book) error
	CreateUser(ctx context.Context, name string, readPages int) error

	// Lending operations

	// RecordLoan appends a lending record and marks the book as the user's
	// current one.
	RecordLoan(ctx context.Context, userName, bookTitle string, takenAt time.Time) error

	// RecordReturn closes the user's open lending record for the book and
	// clears their current book.
	RecordReturn(ctx context.Context, userName, bookTitle string, returnedAt time.Time) error

	// LoadLibrary materializes the full dataset: the catalog in insertion
	// order and the archive in lending order, with user and book references
	// resolved so that records for the same user share one *models.User.
	LoadLibrary(ctx context.Context) (*models.Library, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
