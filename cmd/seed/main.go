package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"library/internal/config"
	"library/internal/db"
	"library/internal/errors"
	"library/internal/repository"
	"library/internal/service"
)

//go:embed books.json
var defaultBooks []byte

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SeedBookData represents one catalogue entry in the seed file.
type SeedBookData struct {
	Title         string `json:"title"`
	AuthorName    string `json:"author_name"`
	GenreName     string `json:"genre_name"`
	PublishedYear int    `json:"published_year"`
	Stock         int    `json:"stock"`
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	slog.Info("starting seed script")

	if cfg.StoreDriver == config.DriverMemory {
		fatal("seeding requires STORE_DRIVER mysql or postgres", nil)
	}
	gormDB, err := db.Open(cfg.StoreDriver, cfg.DSN())
	if err != nil {
		fatal("failed to connect to database", err)
	}
	if err := repository.AutoMigrate(gormDB); err != nil {
		fatal("failed to run migrations", err)
	}
	slog.Info("database migrations completed")

	store := repository.NewStore(gormDB)
	users := service.NewUserService(store)
	books := service.NewBookService(store)
	ctx := context.Background()

	if cfg.AdminPassword == "" {
		fatal("ADMIN_PASSWORD must be set to seed the librarian account", nil)
	}
	if _, created, err := users.EnsureLibrarian(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		fatal("failed to create librarian", err)
	} else if created {
		slog.Info("librarian created", "username", cfg.AdminUsername)
	}

	data := defaultBooks
	if url := os.Getenv("SEED_BOOKS_URL"); url != "" {
		slog.Info("fetching books", "url", url)
		if data, err = fetch(url); err != nil {
			fatal("failed to fetch books", err)
		}
	}

	var entries []SeedBookData
	if err := json.Unmarshal(data, &entries); err != nil {
		fatal("failed to parse books", err)
	}

	seeded, updated, err := seedBooks(ctx, books, entries)
	if err != nil {
		fatal("failed to seed books", err)
	}
	slog.Info("seed completed", "created", seeded, "updated", updated, "total", seeded+updated)
}

func fetch(url string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// seedBooks creates missing books and refreshes the stock of existing ones.
func seedBooks(ctx context.Context, books service.BookService, entries []SeedBookData) (seeded int, updated int, err error) {
	for _, entry := range entries {
		_, err := books.CreateBook(ctx, service.CreateBookInput{
			Title:         entry.Title,
			AuthorName:    entry.AuthorName,
			GenreName:     entry.GenreName,
			PublishedYear: entry.PublishedYear,
			Stock:         entry.Stock,
		})
		switch {
		case err == nil:
			seeded++
		case errors.Is(err, errors.ErrDuplicateBook):
			if err := refreshStock(ctx, books, entry); err != nil {
				return seeded, updated, err
			}
			updated++
		default:
			return seeded, updated, fmt.Errorf("error creating book %q: %w", entry.Title, err)
		}
	}
	return seeded, updated, nil
}

func refreshStock(ctx context.Context, books service.BookService, entry SeedBookData) error {
	matches, err := books.ListBooks(ctx, repository.BookFilter{Title: entry.Title, Author: entry.AuthorName})
	if err != nil {
		return fmt.Errorf("error finding book %q: %w", entry.Title, err)
	}
	for _, b := range matches {
		if !strings.EqualFold(b.Title, entry.Title) || !strings.EqualFold(b.AuthorName, entry.AuthorName) {
			continue
		}
		stock := entry.Stock
		if _, err := books.UpdateBook(ctx, b.ID.Value(), service.UpdateBookInput{Stock: &stock}); err != nil {
			return fmt.Errorf("error updating book %q: %w", entry.Title, err)
		}
		return nil
	}
	return nil
}

func fatal(msg string, err error) {
	if err != nil {
		slog.Error(msg, "error", err)
	} else {
		slog.Error(msg)
	}
	os.Exit(1)
}
