// Package server exposes the lending statistics as a read-only JSON API.
package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libstats/internal/models"
	"libstats/internal/stats"
	"libstats/internal/storage"
)

// Server wraps the gin router with the storage and the stats engine
type Server struct {
	db     storage.Storage
	engine *stats.Engine
	logger *zap.Logger
	router *gin.Engine
}

// New builds the server and registers all routes
func New(db storage.Storage, engine *stats.Engine, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		db:     db,
		engine: engine,
		logger: logger,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := s.router.Group("/api")
	api.GET("/specialists", s.handleSpecialists)
	api.GET("/users/:name/favorite-genre", s.handleFavoriteGenre)
	api.GET("/unreliable", s.handleUnreliable)
	api.GET("/books", s.handleBooks)
	api.GET("/popular-authors", s.handlePopularAuthors)

	return s
}

// Router returns the underlying gin engine (used by tests and app wiring)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run blocks serving HTTP on the given address
func (s *Server) Run(addr string) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

type specialistEntry struct {
	User  string `json:"user"`
	Pages int    `json:"pages"`
}

func (s *Server) handleSpecialists(c *gin.Context) {
	genre, err := models.ParseGenre(c.Query("genre"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lib, ok := s.loadLibrary(c)
	if !ok {
		return
	}

	specialists := s.engine.SpecialistsInGenre(lib, genre)
	entries := make([]specialistEntry, 0, len(specialists))
	for user, pages := range specialists {
		entries = append(entries, specialistEntry{User: user.Name, Pages: pages})
	}
	// The engine result is unordered; sort for a stable response body.
	sort.Slice(entries, func(i, j int) bool { return entries[i].User < entries[j].User })

	c.JSON(http.StatusOK, gin.H{"genre": genre.String(), "specialists": entries})
}

func (s *Server) handleFavoriteGenre(c *gin.Context) {
	lib, ok := s.loadLibrary(c)
	if !ok {
		return
	}

	name := c.Param("name")
	user := findUser(lib, name)
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user: " + name})
		return
	}

	genre, err := s.engine.LoveGenre(lib, user)
	if err != nil {
		if errors.Is(err, stats.ErrNoLendingHistory) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Favorite genre query failed", zap.String("user", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": name, "genre": genre.String()})
}

func (s *Server) handleUnreliable(c *gin.Context) {
	lib, ok := s.loadLibrary(c)
	if !ok {
		return
	}

	users := s.engine.UnreliableUsers(lib)
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.Name)
	}
	sort.Strings(names)

	c.JSON(http.StatusOK, gin.H{"users": names})
}

type bookEntry struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Pages  int    `json:"pages"`
}

func (s *Server) handleBooks(c *gin.Context) {
	minPages := 0
	if raw := c.Query("min_pages"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_pages: " + raw})
			return
		}
		minPages = parsed
	}

	lib, ok := s.loadLibrary(c)
	if !ok {
		return
	}

	books := s.engine.BooksWithMoreCountPages(lib, minPages)
	entries := make([]bookEntry, 0, len(books))
	for _, book := range books {
		entries = append(entries, bookEntry{
			Title:  book.Title,
			Author: book.Author,
			Genre:  book.Genre.String(),
			Pages:  book.Pages,
		})
	}

	c.JSON(http.StatusOK, gin.H{"books": entries})
}

func (s *Server) handlePopularAuthors(c *gin.Context) {
	lib, ok := s.loadLibrary(c)
	if !ok {
		return
	}

	authors := s.engine.MostPopularAuthorInGenre(lib)
	result := make(map[string]string, len(authors))
	for genre, author := range authors {
		result[genre.String()] = author
	}

	c.JSON(http.StatusOK, gin.H{"authors": result})
}

// loadLibrary fetches the snapshot and writes the error response on failure
func (s *Server) loadLibrary(c *gin.Context) (*models.Library, bool) {
	lib, err := s.db.LoadLibrary(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to load library snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load library"})
		return nil, false
	}
	return lib, true
}

func findUser(lib *models.Library, name string) *models.User {
	for _, rec := range lib.Archive {
		if rec.User.Name == name {
			return rec.User
		}
	}
	return nil
}
