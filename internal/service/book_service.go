package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

// CreateBookInput holds the fields of a new book.
type CreateBookInput struct {
	Title         string
	AuthorName    string
	GenreName     string
	PublishedYear int
	Stock         int
}

// UpdateBookInput holds a partial book update; nil fields are left unchanged.
type UpdateBookInput struct {
	Title         *string
	AuthorName    *string
	GenreName     *string
	PublishedYear *int
	Stock         *int
}

// BookService manages the catalogue.
type BookService interface {
	GetBook(ctx context.Context, id model.ID) (*model.Book, error)
	ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, error)
	CreateBook(ctx context.Context, in CreateBookInput) (*model.Book, error)
	UpdateBook(ctx context.Context, id model.ID, in UpdateBookInput) (*model.Book, error)
	DeleteBook(ctx context.Context, id model.ID) error
}

type bookService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(store repository.Store, opts ...Option) BookService {
	o := newOptions(opts)
	return &bookService{store: store, logger: o.logger}
}

func (s *bookService) GetBook(ctx context.Context, id model.ID) (*model.Book, error) {
	book, err := s.store.Books().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, errors.CodeBookNotFound, "book", id)
	}
	return book, nil
}

func (s *bookService) ListBooks(ctx context.Context, filter repository.BookFilter) ([]model.Book, error) {
	books, err := s.store.Books().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *bookService) CreateBook(ctx context.Context, in CreateBookInput) (*model.Book, error) {
	book := &model.Book{
		ID:            model.Unassigned(),
		Title:         strings.TrimSpace(in.Title),
		AuthorName:    strings.TrimSpace(in.AuthorName),
		GenreName:     strings.TrimSpace(in.GenreName),
		PublishedYear: in.PublishedYear,
		Stock:         in.Stock,
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := checkDuplicateBook(ctx, tx, book); err != nil {
			return err
		}
		if err := tx.Books().Save(ctx, book); err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "book created", "book_id", book.ID.Value(), "title", book.Title)
	return book, nil
}

func (s *bookService) UpdateBook(ctx context.Context, id model.ID, in UpdateBookInput) (*model.Book, error) {
	var book *model.Book
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		book, err = tx.Books().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, errors.CodeBookNotFound, "book", id)
		}

		pairChanged := false
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			pairChanged = pairChanged || !strings.EqualFold(title, book.Title)
			book.Title = title
		}
		if in.AuthorName != nil {
			author := strings.TrimSpace(*in.AuthorName)
			pairChanged = pairChanged || !strings.EqualFold(author, book.AuthorName)
			book.AuthorName = author
		}
		if in.GenreName != nil {
			book.GenreName = strings.TrimSpace(*in.GenreName)
		}
		if in.PublishedYear != nil {
			book.PublishedYear = *in.PublishedYear
		}
		if in.Stock != nil {
			book.Stock = *in.Stock
		}
		if err := book.Validate(); err != nil {
			return err
		}

		if pairChanged {
			if err := checkDuplicateBook(ctx, tx, book); err != nil {
				return err
			}
		}
		if err := tx.Books().Save(ctx, book); err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "book updated", "book_id", id)
	return book, nil
}

func (s *bookService) DeleteBook(ctx context.Context, id model.ID) error {
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		book, err := tx.Books().GetByIDForUpdate(ctx, id)
		if err != nil {
			return lookupError(err, errors.CodeBookNotFound, "book", id)
		}

		loans, err := tx.Loans().FindByBook(ctx, id)
		if err != nil {
			return fmt.Errorf("find loans of book %s: %w", id, err)
		}
		if active := model.ActiveLoans(loans); len(active) > 0 {
			return errors.RuleViolation(errors.CodeBookHasActiveLoans,
				"book '%s' has %d active loan(s)", book.Title, len(active))
		}

		if _, err := tx.Books().Delete(ctx, id); err != nil {
			return fmt.Errorf("delete book %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "book deleted", "book_id", id)
	return nil
}

func checkDuplicateBook(ctx context.Context, tx repository.Store, book *model.Book) error {
	exists, err := tx.Books().ExistsByTitleAndAuthor(ctx, book.Title, book.AuthorName, book.ID)
	if err != nil {
		return fmt.Errorf("check duplicate book: %w", err)
	}
	if exists {
		return errors.Validation(errors.CodeDuplicateBook,
			"book '%s' by %s already exists", book.Title, book.AuthorName)
	}
	return nil
}
