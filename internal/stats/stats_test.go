package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libstats/internal/models"
)

// All tests pin "now" so outstanding loans have a deterministic age.
var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewWithClock(func() time.Time { return testNow })
}

// returnedLoan builds a record taken `heldDays` before now and returned at now.
func returnedLoan(user *models.User, book *models.Book, heldDays int) models.ArchivedData {
	taken := testNow.Add(-time.Duration(heldDays) * 24 * time.Hour)
	ret := testNow
	return models.ArchivedData{User: user, Book: book, TakenAt: taken, ReturnedAt: &ret}
}

// outstandingLoan builds a still-held record taken `agoDays` before now.
func outstandingLoan(user *models.User, book *models.Book, agoDays int) models.ArchivedData {
	taken := testNow.Add(-time.Duration(agoDays) * 24 * time.Hour)
	return models.ArchivedData{User: user, Book: book, TakenAt: taken}
}

func repeatLoans(user *models.User, book *models.Book, heldDays, count int) []models.ArchivedData {
	var recs []models.ArchivedData
	for i := 0; i < count; i++ {
		recs = append(recs, returnedLoan(user, book, heldDays))
	}
	return recs
}

func TestSpecialistsInGenre(t *testing.T) {
	fantasyBook := &models.Book{Title: "The Tower", Author: "Allen", Genre: models.Fantasy, Pages: 100}
	mysteryBook := &models.Book{Title: "The Clue", Author: "Baker", Genre: models.Mystery, Pages: 200}

	testCases := []struct {
		name     string
		user     func() *models.User
		archive  func(u *models.User) []models.ArchivedData
		expected map[string]int // user name -> pages; empty means user excluded
	}{
		{
			name: "five 14-day loans with matching current book adds read pages once",
			user: func() *models.User {
				return &models.User{Name: "alice", ReadPages: 50, CurrentBook: fantasyBook}
			},
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, fantasyBook, 14, 5)
			},
			expected: map[string]int{"alice": 550},
		},
		{
			name: "current book in another genre gives no bonus",
			user: func() *models.User {
				return &models.User{Name: "bob", ReadPages: 50, CurrentBook: mysteryBook}
			},
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, fantasyBook, 20, 5)
			},
			expected: map[string]int{"bob": 500},
		},
		{
			name: "no current book gives no bonus",
			user: func() *models.User {
				return &models.User{Name: "carol", ReadPages: 999}
			},
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, fantasyBook, 15, 6)
			},
			expected: map[string]int{"carol": 600},
		},
		{
			name: "four qualifying loans are not enough",
			user: func() *models.User {
				return &models.User{Name: "dave"}
			},
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, fantasyBook, 30, 4)
			},
			expected: map[string]int{},
		},
		{
			name: "loans held under two weeks do not qualify",
			user: func() *models.User {
				return &models.User{Name: "erin"}
			},
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, fantasyBook, 13, 5)
			},
			expected: map[string]int{},
		},
		{
			name: "wrong-genre loans do not count toward the five",
			user: func() *models.User {
				return &models.User{Name: "frank"}
			},
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, fantasyBook, 20, 4)
				return append(recs, repeatLoans(u, mysteryBook, 20, 3)...)
			},
			expected: map[string]int{},
		},
		{
			name: "outstanding loan counts once two weeks have elapsed",
			user: func() *models.User {
				return &models.User{Name: "gina"}
			},
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, fantasyBook, 14, 4)
				return append(recs, outstandingLoan(u, fantasyBook, 14))
			},
			expected: map[string]int{"gina": 500},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user := tc.user()
			lib := &models.Library{Archive: tc.archive(user)}

			result := testEngine().SpecialistsInGenre(lib, models.Fantasy)

			named := make(map[string]int)
			for u, pages := range result {
				named[u.Name] = pages
			}
			assert.Equal(t, tc.expected, named)
		})
	}
}

func TestSpecialistsInGenre_MixedUsers(t *testing.T) {
	book := &models.Book{Title: "The Tower", Author: "Allen", Genre: models.Fantasy, Pages: 120}
	specialist := &models.User{Name: "alice"}
	casual := &models.User{Name: "bob"}

	archive := repeatLoans(specialist, book, 21, 5)
	archive = append(archive, repeatLoans(casual, book, 21, 2)...)
	lib := &models.Library{Archive: archive}

	result := testEngine().SpecialistsInGenre(lib, models.Fantasy)

	require.Len(t, result, 1)
	assert.Equal(t, 600, result[specialist])
	assert.NotContains(t, result, casual)
}

func TestLoveGenre(t *testing.T) {
	fantasyBook := &models.Book{Title: "The Tower", Genre: models.Fantasy, Pages: 100}
	mysteryBook := &models.Book{Title: "The Clue", Genre: models.Mystery, Pages: 100}
	horrorBook := &models.Book{Title: "The Cellar", Genre: models.Horror, Pages: 100}

	testCases := []struct {
		name     string
		user     func() *models.User
		archive  func(u *models.User) []models.ArchivedData
		expected models.Genre
	}{
		{
			name: "single most frequent genre wins",
			user: func() *models.User { return &models.User{Name: "alice"} },
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, mysteryBook, 5, 3)
				return append(recs, returnedLoan(u, fantasyBook, 5))
			},
			expected: models.Mystery,
		},
		{
			name: "tie prefers the genre being read right now",
			user: func() *models.User {
				return &models.User{Name: "bob", CurrentBook: mysteryBook}
			},
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, fantasyBook, 5, 2)
				return append(recs, repeatLoans(u, mysteryBook, 5, 2)...)
			},
			expected: models.Mystery,
		},
		{
			name: "tie without a current book falls to the first genre seen",
			user: func() *models.User { return &models.User{Name: "carol"} },
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, horrorBook, 5, 2)
				return append(recs, repeatLoans(u, fantasyBook, 5, 2)...)
			},
			expected: models.Horror,
		},
		{
			name: "current book outside the tie does not override it",
			user: func() *models.User {
				return &models.User{Name: "dave", CurrentBook: horrorBook}
			},
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, fantasyBook, 5, 2)
				recs = append(recs, repeatLoans(u, mysteryBook, 5, 2)...)
				return append(recs, returnedLoan(u, horrorBook, 5))
			},
			expected: models.Fantasy,
		},
		{
			name: "outstanding loans are not counted",
			user: func() *models.User { return &models.User{Name: "erin"} },
			archive: func(u *models.User) []models.ArchivedData {
				recs := []models.ArchivedData{returnedLoan(u, fantasyBook, 5)}
				recs = append(recs, outstandingLoan(u, mysteryBook, 5))
				return append(recs, outstandingLoan(u, mysteryBook, 5))
			},
			expected: models.Fantasy,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user := tc.user()
			lib := &models.Library{Archive: tc.archive(user)}

			genre, err := testEngine().LoveGenre(lib, user)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, genre)
		})
	}
}

func TestLoveGenre_NoReturnedRecords(t *testing.T) {
	book := &models.Book{Title: "The Tower", Genre: models.Fantasy, Pages: 100}
	user := &models.User{Name: "alice", CurrentBook: book}
	lib := &models.Library{Archive: []models.ArchivedData{outstandingLoan(user, book, 3)}}

	_, err := testEngine().LoveGenre(lib, user)

	assert.ErrorIs(t, err, ErrNoLendingHistory)
}

func TestLoveGenre_IgnoresOtherUsers(t *testing.T) {
	fantasyBook := &models.Book{Title: "The Tower", Genre: models.Fantasy, Pages: 100}
	mysteryBook := &models.Book{Title: "The Clue", Genre: models.Mystery, Pages: 100}
	alice := &models.User{Name: "alice"}
	bob := &models.User{Name: "bob"}

	archive := repeatLoans(alice, fantasyBook, 5, 1)
	archive = append(archive, repeatLoans(bob, mysteryBook, 5, 10)...)
	lib := &models.Library{Archive: archive}

	genre, err := testEngine().LoveGenre(lib, alice)

	require.NoError(t, err)
	assert.Equal(t, models.Fantasy, genre)
}

func TestUnreliableUsers(t *testing.T) {
	book := &models.Book{Title: "The Tower", Genre: models.Fantasy, Pages: 100}

	testCases := []struct {
		name       string
		archive    func(u *models.User) []models.ArchivedData
		unreliable bool
	}{
		{
			name: "two of three loans over a month qualifies",
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, book, 31, 2)
				return append(recs, returnedLoan(u, book, 5))
			},
			unreliable: true,
		},
		{
			name: "one of three loans over a month does not qualify",
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, book, 31, 1)
				return append(recs, repeatLoans(u, book, 5, 2)...)
			},
			unreliable: false,
		},
		{
			name: "exactly thirty days is not over the threshold",
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, book, 30, 4)
			},
			unreliable: false,
		},
		{
			name: "exactly half of an even total does not qualify",
			archive: func(u *models.User) []models.ArchivedData {
				recs := repeatLoans(u, book, 31, 2)
				return append(recs, repeatLoans(u, book, 5, 2)...)
			},
			unreliable: false,
		},
		{
			name: "outstanding loans count against the user",
			archive: func(u *models.User) []models.ArchivedData {
				recs := []models.ArchivedData{outstandingLoan(u, book, 45)}
				return append(recs, outstandingLoan(u, book, 31))
			},
			unreliable: true,
		},
		{
			name: "single quick loan is fine",
			archive: func(u *models.User) []models.ArchivedData {
				return repeatLoans(u, book, 10, 1)
			},
			unreliable: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user := &models.User{Name: "alice"}
			lib := &models.Library{Archive: tc.archive(user)}

			result := testEngine().UnreliableUsers(lib)

			if tc.unreliable {
				assert.Equal(t, []*models.User{user}, result)
			} else {
				assert.Empty(t, result)
			}
		})
	}
}

func TestUnreliableUsers_OnlyFlagsOffenders(t *testing.T) {
	book := &models.Book{Title: "The Tower", Genre: models.Fantasy, Pages: 100}
	hoarder := &models.User{Name: "alice"}
	prompt := &models.User{Name: "bob"}

	archive := repeatLoans(hoarder, book, 40, 3)
	archive = append(archive, repeatLoans(prompt, book, 7, 3)...)
	lib := &models.Library{Archive: archive}

	result := testEngine().UnreliableUsers(lib)

	assert.Equal(t, []*models.User{hoarder}, result)
}

func TestBooksWithMoreCountPages(t *testing.T) {
	catalog := []models.Book{
		{Title: "Short", Author: "Allen", Genre: models.Fantasy, Pages: 90},
		{Title: "Medium", Author: "Baker", Genre: models.Mystery, Pages: 200},
		{Title: "Long", Author: "Clark", Genre: models.History, Pages: 700},
		{Title: "Medium Twin", Author: "Baker", Genre: models.Mystery, Pages: 200},
	}
	lib := &models.Library{Books: catalog}
	engine := testEngine()

	t.Run("zero threshold returns the whole catalog in order", func(t *testing.T) {
		assert.Equal(t, catalog, engine.BooksWithMoreCountPages(lib, 0))
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		result := engine.BooksWithMoreCountPages(lib, 200)
		require.Len(t, result, 3)
		assert.Equal(t, "Medium", result[0].Title)
		assert.Equal(t, "Long", result[1].Title)
		assert.Equal(t, "Medium Twin", result[2].Title)
	})

	t.Run("threshold above every book returns nothing", func(t *testing.T) {
		assert.Empty(t, engine.BooksWithMoreCountPages(lib, 1000))
	})
}

func TestMostPopularAuthorInGenre(t *testing.T) {
	allen := &models.Book{Title: "A Case", Author: "Allen", Genre: models.Mystery, Pages: 100}
	baker := &models.Book{Title: "B Case", Author: "Baker", Genre: models.Mystery, Pages: 100}
	clark := &models.Book{Title: "Dragons", Author: "Clark", Genre: models.Fantasy, Pages: 100}
	user := &models.User{Name: "alice"}

	archive := repeatLoans(user, allen, 5, 3)
	archive = append(archive, repeatLoans(user, baker, 5, 3)...)
	archive = append(archive, repeatLoans(user, clark, 5, 1)...)
	lib := &models.Library{Archive: archive}

	result := testEngine().MostPopularAuthorInGenre(lib)

	// Every enumerated genre is present, even without lendings.
	require.Len(t, result, len(models.Genres()))
	for _, genre := range models.Genres() {
		assert.Contains(t, result, genre)
	}

	// Tie at 3 lendings each resolves alphabetically.
	assert.Equal(t, "Allen", result[models.Mystery])
	assert.Equal(t, "Clark", result[models.Fantasy])
	assert.Equal(t, AuthorNotDetermined, result[models.Horror])
	assert.Equal(t, AuthorNotDetermined, result[models.Romance])
}

func TestMostPopularAuthorInGenre_HigherCountBeatsAlphabet(t *testing.T) {
	allen := &models.Book{Title: "A Case", Author: "Allen", Genre: models.Mystery, Pages: 100}
	baker := &models.Book{Title: "B Case", Author: "Baker", Genre: models.Mystery, Pages: 100}
	user := &models.User{Name: "alice"}

	archive := repeatLoans(user, allen, 5, 2)
	archive = append(archive, repeatLoans(user, baker, 5, 4)...)
	lib := &models.Library{Archive: archive}

	result := testEngine().MostPopularAuthorInGenre(lib)

	assert.Equal(t, "Baker", result[models.Mystery])
}

func TestMostPopularAuthorInGenre_EmptyArchive(t *testing.T) {
	result := testEngine().MostPopularAuthorInGenre(&models.Library{})

	require.Len(t, result, len(models.Genres()))
	for _, genre := range models.Genres() {
		assert.Equal(t, AuthorNotDetermined, result[genre])
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	fantasyBook := &models.Book{Title: "The Tower", Author: "Allen", Genre: models.Fantasy, Pages: 100}
	user := &models.User{Name: "alice", ReadPages: 50, CurrentBook: fantasyBook}

	lib := &models.Library{
		Books:   []models.Book{*fantasyBook},
		Archive: repeatLoans(user, fantasyBook, 14, 5),
	}
	engine := testEngine()

	assert.Equal(t,
		engine.SpecialistsInGenre(lib, models.Fantasy),
		engine.SpecialistsInGenre(lib, models.Fantasy))

	first, err1 := engine.LoveGenre(lib, user)
	second, err2 := engine.LoveGenre(lib, user)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)

	assert.Equal(t, engine.UnreliableUsers(lib), engine.UnreliableUsers(lib))
	assert.Equal(t, engine.BooksWithMoreCountPages(lib, 0), engine.BooksWithMoreCountPages(lib, 0))
	assert.Equal(t, engine.MostPopularAuthorInGenre(lib), engine.MostPopularAuthorInGenre(lib))
}
