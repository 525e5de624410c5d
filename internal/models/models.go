package models

import "time"

// Book represents a book in the library catalog
type Book struct {
	Title  string
	Author string
	Genre  Genre
	Pages  int
}

// User represents a reader. ReadPages is the running total of pages the user
// has read before the period covered by the archive. CurrentBook is the book
// the user is holding right now, nil if none.
type User struct {
	Name        string
	ReadPages   int
	CurrentBook *Book
}

// ArchivedData is one lending record. ReturnedAt is nil while the book is
// still checked out.
type ArchivedData struct {
	User       *User
	Book       *Book
	TakenAt    time.Time
	ReturnedAt *time.Time
}

// Returned reports whether the book from this record has been given back.
func (a ArchivedData) Returned() bool {
	return a.ReturnedAt != nil
}

// Library is the dataset root: the catalog and the complete lending history,
// both in their original order. Statistics treat it as an immutable snapshot.
type Library struct {
	Books   []Book
	Archive []ArchivedData
}
