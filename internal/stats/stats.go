// Package stats computes descriptive statistics over a library's lending
// history: genre specialists, a user's favorite genre, unreliable users,
// catalog filters and the most popular author per genre.
//
// The engine is stateless: every query is a read-only traversal of the
// supplied Library snapshot and builds a fresh result. Invocations are
// independent, so concurrent queries over the same snapshot need no
// coordination as long as nothing mutates the snapshot underneath them.
package stats

import (
	"errors"
	"sort"
	"time"

	"libstats/internal/models"
)

// ErrNoLendingHistory is returned by LoveGenre when the user has no returned
// lending records to draw a favorite genre from.
var ErrNoLendingHistory = errors.New("user has no returned lending records")

// AuthorNotDetermined is reported by MostPopularAuthorInGenre for genres with
// no lending history at all.
const AuthorNotDetermined = "Author not determined"

const (
	// SpecialistMinLoans is how many qualifying loans make a user a genre specialist.
	SpecialistMinLoans = 5
	// SpecialistHoldTime is the minimum possession time (inclusive) for a loan
	// to count toward specialist status.
	SpecialistHoldTime = 14 * 24 * time.Hour
	// UnreliableHoldTime is the possession time a loan must exceed (strictly)
	// to count against a user's reliability.
	UnreliableHoldTime = 30 * 24 * time.Hour
)

// Engine answers statistics queries over Library snapshots. The clock is a
// field so tests can pin the evaluation instant for still-outstanding loans.
type Engine struct {
	now func() time.Time
}

// New creates an engine that evaluates outstanding loans against wall-clock time.
func New() *Engine {
	return &Engine{now: time.Now}
}

// NewWithClock creates an engine with a fixed notion of "now".
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// SpecialistsInGenre returns the users who are specialists in the given genre,
// mapped to their total page count across qualifying loans.
//
// A specialist has at least SpecialistMinLoans lending records for books of
// the genre, each held for SpecialistHoldTime or longer (a book still checked
// out counts once that much time has elapsed since checkout). If a
// specialist's currently-held book is also in the genre, their historical
// ReadPages total is added once on top of the per-loan page sum.
func (e *Engine) SpecialistsInGenre(lib *models.Library, genre models.Genre) map[*models.User]int {
	byUser := make(map[*models.User][]models.ArchivedData)
	var order []*models.User
	for _, rec := range lib.Archive {
		if rec.Book.Genre != genre {
			continue
		}
		if !e.delinquent(rec, SpecialistHoldTime, true) {
			continue
		}
		if _, seen := byUser[rec.User]; !seen {
			order = append(order, rec.User)
		}
		byUser[rec.User] = append(byUser[rec.User], rec)
	}

	result := make(map[*models.User]int)
	for _, user := range order {
		loans := byUser[user]
		if len(loans) < SpecialistMinLoans {
			continue
		}
		pages := 0
		for _, rec := range loans {
			pages += rec.Book.Pages
		}
		// The ReadPages bonus applies once per qualifying user, keyed off
		// the book they are holding right now.
		if user.CurrentBook != nil && user.CurrentBook.Genre == genre {
			pages += user.ReadPages
		}
		result[user] = pages
	}
	return result
}

// LoveGenre returns the genre occurring most often among the user's returned
// lending records. When several genres tie for the maximum, the genre of the
// book the user is currently reading wins if it is among them; otherwise the
// tie goes to whichever tied genre appeared first in the archive. The
// encounter-order fallback is arbitrary but deterministic for a given
// snapshot. Returns ErrNoLendingHistory if the user has no returned records.
func (e *Engine) LoveGenre(lib *models.Library, user *models.User) (models.Genre, error) {
	counts := make(map[models.Genre]int)
	var order []models.Genre
	for _, rec := range lib.Archive {
		if rec.User != user || !rec.Returned() {
			continue
		}
		if _, seen := counts[rec.Book.Genre]; !seen {
			order = append(order, rec.Book.Genre)
		}
		counts[rec.Book.Genre]++
	}
	if len(order) == 0 {
		return 0, ErrNoLendingHistory
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	var tied []models.Genre
	for _, genre := range order {
		if counts[genre] == max {
			tied = append(tied, genre)
		}
	}
	if user.CurrentBook != nil {
		for _, genre := range tied {
			if genre == user.CurrentBook.Genre {
				return genre, nil
			}
		}
	}
	return tied[0], nil
}

// UnreliableUsers returns the users for whom more than half of all lending
// records (returned or still held) exceeded UnreliableHoldTime. "More than
// half" uses floor division: with 3 records a user needs at least 2 overdue
// loans to qualify. Result order follows first appearance in the archive.
func (e *Engine) UnreliableUsers(lib *models.Library) []*models.User {
	totals := make(map[*models.User]int)
	overdue := make(map[*models.User]int)
	var order []*models.User
	for _, rec := range lib.Archive {
		if _, seen := totals[rec.User]; !seen {
			order = append(order, rec.User)
		}
		totals[rec.User]++
		if e.delinquent(rec, UnreliableHoldTime, false) {
			overdue[rec.User]++
		}
	}

	var unreliable []*models.User
	for _, user := range order {
		if overdue[user] > totals[user]/2 {
			unreliable = append(unreliable, user)
		}
	}
	return unreliable
}

// BooksWithMoreCountPages returns every catalog book whose page count is at
// least minPages, preserving catalog order. Duplicates in the catalog are
// kept as-is.
func (e *Engine) BooksWithMoreCountPages(lib *models.Library, minPages int) []models.Book {
	var books []models.Book
	for _, book := range lib.Books {
		if book.Pages >= minPages {
			books = append(books, book)
		}
	}
	return books
}

// MostPopularAuthorInGenre returns, for every genre in the fixed enumeration,
// the author whose books were lent most often in that genre. Ties are broken
// alphabetically ascending by author name. Genres with no lending history map
// to AuthorNotDetermined; every genre appears as a key.
func (e *Engine) MostPopularAuthorInGenre(lib *models.Library) map[models.Genre]string {
	result := make(map[models.Genre]string, len(models.Genres()))
	for _, genre := range models.Genres() {
		counts := make(map[string]int)
		for _, rec := range lib.Archive {
			if rec.Book.Genre == genre {
				counts[rec.Book.Author]++
			}
		}
		result[genre] = topAuthor(counts)
	}
	return result
}

// topAuthor picks the author with the highest count, ties alphabetical.
func topAuthor(counts map[string]int) string {
	if len(counts) == 0 {
		return AuthorNotDetermined
	}
	authors := make([]string, 0, len(counts))
	for author := range counts {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	best := authors[0]
	for _, author := range authors[1:] {
		if counts[author] > counts[best] {
			best = author
		}
	}
	return best
}

// delinquent reports whether a lending record's possession time meets the
// threshold. Returned records are measured checkout-to-return; outstanding
// records are measured checkout-to-now. Inclusive mode compares with >=,
// exclusive mode with >.
func (e *Engine) delinquent(rec models.ArchivedData, threshold time.Duration, inclusive bool) bool {
	end := e.now()
	if rec.Returned() {
		end = *rec.ReturnedAt
	}
	held := end.Sub(rec.TakenAt)
	if inclusive {
		return held >= threshold
	}
	return held > threshold
}
