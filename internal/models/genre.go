package models

import "fmt"

// Genre is a literary genre. The set of genres is closed: statistics that
// report per-genre results iterate Genres(), not just genres seen in the
// archive.
type Genre int

const (
	Fantasy Genre = iota
	Mystery
	ScienceFiction
	Romance
	Horror
	History
)

var genreNames = map[Genre]string{
	Fantasy:        "fantasy",
	Mystery:        "mystery",
	ScienceFiction: "science_fiction",
	Romance:        "romance",
	Horror:         "horror",
	History:        "history",
}

// Genres returns the complete fixed set of genres in declaration order.
func Genres() []Genre {
	return []Genre{Fantasy, Mystery, ScienceFiction, Romance, Horror, History}
}

func (g Genre) String() string {
	if name, ok := genreNames[g]; ok {
		return name
	}
	return fmt.Sprintf("genre(%d)", int(g))
}

// ParseGenre converts a storage or transport string back into a Genre.
func ParseGenre(s string) (Genre, error) {
	for genre, name := range genreNames {
		if name == s {
			return genre, nil
		}
	}
	return 0, fmt.Errorf("unknown genre: %q", s)
}
