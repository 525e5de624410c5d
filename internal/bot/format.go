package bot

import (
	"fmt"
	"sort"
	"strings"

	"libstats/internal/models"
)

// formatSpecialists renders the specialist map sorted by user name
func formatSpecialists(genre models.Genre, specialists map[*models.User]int) string {
	if len(specialists) == 0 {
		return fmt.Sprintf("No %s specialists yet.", genre)
	}

	users := make([]*models.User, 0, len(specialists))
	for user := range specialists {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })

	var text strings.Builder
	fmt.Fprintf(&text, "Specialists in %s:\n\n", genre)
	for i, user := range users {
		fmt.Fprintf(&text, "%d. %s - %d pages\n", i+1, user.Name, specialists[user])
	}
	return text.String()
}

func formatUnreliable(users []*models.User) string {
	if len(users) == 0 {
		return "Everyone returns their books on time. 🎉"
	}

	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.Name)
	}
	sort.Strings(names)

	var text strings.Builder
	text.WriteString("Users holding books over a month:\n\n")
	for i, name := range names {
		fmt.Fprintf(&text, "%d. %s\n", i+1, name)
	}
	return text.String()
}

func formatBooks(books []models.Book) string {
	if len(books) == 0 {
		return "No books match."
	}

	var text strings.Builder
	text.WriteString("Matching books:\n\n")
	for i, book := range books {
		fmt.Fprintf(&text, "%d. %s - %s (%s, %d pages)\n", i+1, book.Title, book.Author, book.Genre, book.Pages)
	}
	return text.String()
}

// formatAuthors renders one line per genre in enumeration order
func formatAuthors(authors map[models.Genre]string) string {
	var text strings.Builder
	text.WriteString("Most popular author per genre:\n\n")
	for _, genre := range models.Genres() {
		fmt.Fprintf(&text, "%s: %s\n", genre, authors[genre])
	}
	return text.String()
}
