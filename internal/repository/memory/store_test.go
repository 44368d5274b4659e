package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library/internal/model"
	"library/internal/repository"
)

func seed(t *testing.T, s *Store) (model.User, model.Book) {
	t.Helper()
	ctx := context.Background()
	student := model.User{Username: "alice", Email: "alice@example.com", Role: model.RoleStudent}
	require.NoError(t, s.Users().Save(ctx, &student, "secret-pass"))
	book := model.Book{Title: "Dune", AuthorName: "Frank Herbert", GenreName: "Sci-Fi", PublishedYear: 1965, Stock: 2}
	require.NoError(t, s.Books().Save(ctx, &book))
	return student, book
}

func TestStore_SaveAssignsIdentity(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost))
	student, book := seed(t, s)

	assert.True(t, student.ID.IsAssigned())
	assert.True(t, book.ID.IsAssigned())

	got, err := s.Books().GetByID(context.Background(), book.ID.Value())
	require.NoError(t, err)
	assert.Equal(t, book, *got)
}

func TestStore_LookupMissReturnsErrNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Books().GetByID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Users().GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Loans().GetByID(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_PasswordKeptWhenEmptyOnUpdate(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()
	student, _ := seed(t, s)

	student.FirstName = "Alice"
	require.NoError(t, s.Users().Save(ctx, &student, ""))

	user, hash, err := s.Users().PasswordHash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret-pass")))
}

func TestStore_LoansReflectCurrentBook(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()
	student, book := seed(t, s)

	loan := model.NewLoan(student, book, time.Now())
	require.NoError(t, s.Loans().Save(ctx, loan))

	book.Stock = 0
	require.NoError(t, s.Books().Save(ctx, &book))

	got, err := s.Loans().GetByID(ctx, loan.ID.Value())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Book.Stock)

	active, err := s.Loans().FindActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	returned, err := s.Loans().FindReturned(ctx)
	require.NoError(t, err)
	assert.Empty(t, returned)
}

func TestStore_DeleteBookRemovesItsLoans(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()
	student, book := seed(t, s)

	loan := model.NewLoan(student, book, time.Now())
	require.NoError(t, s.Loans().Save(ctx, loan))

	deleted, err := s.Books().Delete(ctx, book.ID.Value())
	require.NoError(t, err)
	assert.True(t, deleted)

	loans, err := s.Loans().GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)

	deleted, err = s.Books().Delete(ctx, book.ID.Value())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_WithTransactionRollsBack(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()
	_, book := seed(t, s)

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		b, err := tx.Books().GetByIDForUpdate(ctx, book.ID.Value())
		if err != nil {
			return err
		}
		b.Stock = 0
		if err := tx.Books().Save(ctx, b); err != nil {
			return err
		}
		extra := model.Book{Title: "Emma", AuthorName: "Jane Austen", GenreName: "Classic", PublishedYear: 1815}
		if err := tx.Books().Save(ctx, &extra); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	books, err := s.Books().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 2, books[0].Stock)
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return tx.WithTransaction(ctx, func(ctx context.Context, inner repository.Store) error {
			b := model.Book{Title: "Emma", AuthorName: "Jane Austen", GenreName: "Classic", PublishedYear: 1815}
			return inner.Books().Save(ctx, &b)
		})
	})
	require.NoError(t, err)

	books, err := s.Books().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestStore_HonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Books().GetAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	err = s.WithTransaction(ctx, func(context.Context, repository.Store) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ExistsByTitleAndAuthor(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()
	_, book := seed(t, s)

	exists, err := s.Books().ExistsByTitleAndAuthor(ctx, "dune", "FRANK HERBERT", model.Unassigned())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Books().ExistsByTitleAndAuthor(ctx, "dune", "frank herbert", book.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
