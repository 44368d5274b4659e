package model

import (
	"fmt"
	"strings"
	"time"

	"library/internal/errors"
)

const minBookFieldLength = 2

// currentYear bounds the published year; replaced in tests.
var currentYear = func() int { return time.Now().Year() }

// Book is a catalogue title together with its count of shelf copies.
type Book struct {
	ID            Identity `json:"id"`
	Title         string   `json:"title"`
	AuthorName    string   `json:"author_name"`
	GenreName     string   `json:"genre_name"`
	PublishedYear int      `json:"published_year"`
	Stock         int      `json:"stock"`
}

func (b Book) String() string {
	return fmt.Sprintf("%s by %s", b.Title, b.AuthorName)
}

// IsAvailable reports whether at least one copy can be lent.
func (b Book) IsAvailable() bool {
	return b.Stock > 0
}

// Validate checks the field-level constraints of a book.
func (b Book) Validate() error {
	if err := ValidateBookTitle(b.Title); err != nil {
		return err
	}
	if err := ValidatePublishedYear(b.PublishedYear); err != nil {
		return err
	}
	if err := ValidateStock(b.Stock); err != nil {
		return err
	}
	if err := ValidateAuthorName(b.AuthorName); err != nil {
		return err
	}
	return ValidateGenreName(b.GenreName)
}

// DecreaseStock takes one copy off the shelf.
func (b *Book) DecreaseStock() error {
	if !b.IsAvailable() {
		return errors.RuleViolation(errors.CodeNoStock, "book '%s' not available", b.Title)
	}
	b.Stock--
	return nil
}

// IncreaseStock puts one copy back on the shelf.
func (b *Book) IncreaseStock() {
	b.Stock++
}

// ValidateBookTitle rejects titles shorter than two characters.
func ValidateBookTitle(title string) error {
	if len(strings.TrimSpace(title)) < minBookFieldLength {
		return errors.Validation(errors.CodeInvalidBook, "title too short")
	}
	return nil
}

// ValidateAuthorName rejects author names shorter than two characters.
func ValidateAuthorName(name string) error {
	if len(strings.TrimSpace(name)) < minBookFieldLength {
		return errors.Validation(errors.CodeInvalidBook, "author name too short")
	}
	return nil
}

// ValidateGenreName rejects genre names shorter than two characters.
func ValidateGenreName(name string) error {
	if len(strings.TrimSpace(name)) < minBookFieldLength {
		return errors.Validation(errors.CodeInvalidBook, "genre name too short")
	}
	return nil
}

// ValidatePublishedYear accepts years from 1 up to the current year.
func ValidatePublishedYear(year int) error {
	if year < 1 || year > currentYear() {
		return errors.Validation(errors.CodeInvalidBook, "invalid publication year %d", year)
	}
	return nil
}

// ValidateStock rejects negative stock.
func ValidateStock(stock int) error {
	if stock < 0 {
		return errors.Validation(errors.CodeInvalidBook, "stock cannot be negative")
	}
	return nil
}
