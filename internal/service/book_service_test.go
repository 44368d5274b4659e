package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/errors"
	"library/internal/repository"
)

func TestBookService_CreateBook(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateBookInput
		wantErr error
	}{
		{
			name:  "valid",
			input: CreateBookInput{Title: "  Dune ", AuthorName: "Frank Herbert", GenreName: "Sci-Fi", PublishedYear: 1965, Stock: 3},
		},
		{
			name:    "title too short after trim",
			input:   CreateBookInput{Title: " D ", AuthorName: "Frank Herbert", GenreName: "Sci-Fi", PublishedYear: 1965},
			wantErr: errors.ErrValidation,
		},
		{
			name:    "negative stock",
			input:   CreateBookInput{Title: "Dune", AuthorName: "Frank Herbert", GenreName: "Sci-Fi", PublishedYear: 1965, Stock: -1},
			wantErr: errors.ErrValidation,
		},
		{
			name:    "year zero",
			input:   CreateBookInput{Title: "Dune", AuthorName: "Frank Herbert", GenreName: "Sci-Fi"},
			wantErr: errors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			book, err := f.books.CreateBook(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, book)
				return
			}
			require.NoError(t, err)
			assert.True(t, book.ID.IsAssigned())
			assert.Equal(t, "Dune", book.Title)
			assert.Equal(t, 3, book.Stock)
		})
	}
}

func TestBookService_RejectsDuplicateTitleAndAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", 1)

	_, err := f.books.CreateBook(ctx, CreateBookInput{
		Title: "DUNE", AuthorName: "some author", GenreName: "Fiction", PublishedYear: 1990,
	})
	assert.ErrorIs(t, err, errors.ErrDuplicateBook)

	emma := f.book(t, "Emma", 1)
	title := "dune"
	_, err = f.books.UpdateBook(ctx, emma.ID.Value(), UpdateBookInput{Title: &title})
	assert.ErrorIs(t, err, errors.ErrDuplicateBook)

	// renaming a book to a different case of its own title is fine
	_, err = f.books.UpdateBook(ctx, dune.ID.Value(), UpdateBookInput{Title: &title})
	assert.NoError(t, err)
}

func TestBookService_UpdateBookIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", 1)

	stock := 7
	updated, err := f.books.UpdateBook(ctx, dune.ID.Value(), UpdateBookInput{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, "Dune", updated.Title)
	assert.Equal(t, 1990, updated.PublishedYear)

	negative := -2
	_, err = f.books.UpdateBook(ctx, dune.ID.Value(), UpdateBookInput{Stock: &negative})
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, 7, f.stock(t, dune))

	_, err = f.books.UpdateBook(ctx, 999, UpdateBookInput{Stock: &stock})
	assert.ErrorIs(t, err, errors.ErrBookNotFound)
}

func TestBookService_DeleteBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.student(t, "alice")
	dune := f.book(t, "Dune", 1)

	loan, err := f.loans.CreateLoan(ctx, alice.ID.Value(), dune.ID.Value())
	require.NoError(t, err)

	err = f.books.DeleteBook(ctx, dune.ID.Value())
	assert.ErrorIs(t, err, errors.ErrBookHasActiveLoans)

	_, err = f.loans.ReturnLoan(ctx, loan.ID.Value())
	require.NoError(t, err)
	require.NoError(t, f.books.DeleteBook(ctx, dune.ID.Value()))

	_, err = f.books.GetBook(ctx, dune.ID.Value())
	assert.ErrorIs(t, err, errors.ErrBookNotFound)
	_, err = f.loans.GetLoan(ctx, loan.ID.Value())
	assert.ErrorIs(t, err, errors.ErrLoanNotFound)

	err = f.books.DeleteBook(ctx, dune.ID.Value())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestBookService_ListBooks(t *testing.T) {
	f := newFixture(t)
	f.book(t, "Dune", 0)
	f.book(t, "Dune Messiah", 2)
	f.book(t, "Emma", 1)

	available := true
	books, err := f.books.ListBooks(context.Background(), repository.BookFilter{Title: "dune", Available: &available})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune Messiah", books[0].Title)

	all, err := f.books.ListBooks(context.Background(), repository.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
