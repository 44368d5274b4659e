package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"library/internal/model"
)

// ErrNotFound is returned by every lookup that matches no record.
var ErrNotFound = errors.New("record not found")

// Store groups the repositories that share one consistent data store.
type Store interface {
	Books() BookRepository
	Users() UserRepository
	Loans() LoanRepository
	// WithTransaction runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// BookFilter narrows a book search. Zero-valued fields do not filter.
type BookFilter struct {
	Title     string
	Author    string
	Genre     string
	YearMin   *int
	YearMax   *int
	Year      *int
	Stock     *int
	Available *bool
}

// IsEmpty reports whether the filter matches every book.
func (f BookFilter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.Genre == "" &&
		f.YearMin == nil && f.YearMax == nil && f.Year == nil &&
		f.Stock == nil && f.Available == nil
}

// Matches applies the filter to a single book.
func (f BookFilter) Matches(b model.Book) bool {
	if f.Title != "" && !containsFold(b.Title, f.Title) {
		return false
	}
	if f.Author != "" && !containsFold(b.AuthorName, f.Author) {
		return false
	}
	if f.Genre != "" && !containsFold(b.GenreName, f.Genre) {
		return false
	}
	if f.YearMin != nil && b.PublishedYear < *f.YearMin {
		return false
	}
	if f.YearMax != nil && b.PublishedYear > *f.YearMax {
		return false
	}
	if f.Year != nil && b.PublishedYear != *f.Year {
		return false
	}
	if f.Stock != nil && b.Stock != *f.Stock {
		return false
	}
	if f.Available != nil && b.IsAvailable() != *f.Available {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type store struct {
	db           *gorm.DB
	passwordCost int
}

// NewStore builds a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &store{db: db, passwordCost: DefaultPasswordCost}
}

func (s *store) Books() BookRepository {
	return &bookRepository{db: s.db}
}

func (s *store) Users() UserRepository {
	return &userRepository{db: s.db, passwordCost: s.passwordCost}
}

func (s *store) Loans() LoanRepository {
	return &loanRepository{db: s.db}
}

// WithTransaction executes fn within a database transaction.
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &store{db: tx, passwordCost: s.passwordCost})
	})
}

// AutoMigrate creates or updates the library tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRecord{}, &bookRecord{}, &loanRecord{})
}

// DropTables removes the library tables, loans first.
func DropTables(db *gorm.DB) error {
	return db.Migrator().DropTable(&loanRecord{}, &bookRecord{}, &userRecord{})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
