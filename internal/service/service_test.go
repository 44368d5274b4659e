package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library/internal/model"
	"library/internal/repository"
	"library/internal/repository/memory"
)

type fixture struct {
	store repository.Store
	books BookService
	users UserService
	loans LoanService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(memory.WithPasswordCost(bcrypt.MinCost)))
}

func newFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	f := &fixture{store: store, now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return f.now }),
	}
	f.books = NewBookService(store, opts...)
	f.users = NewUserService(store, opts...)
	f.loans = NewLoanService(store, opts...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) user(t *testing.T, username string, role model.Role) *model.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) student(t *testing.T, username string) *model.User {
	return f.user(t, username, model.RoleStudent)
}

func (f *fixture) librarian(t *testing.T, username string) *model.User {
	return f.user(t, username, model.RoleLibrarian)
}

func (f *fixture) book(t *testing.T, title string, stock int) *model.Book {
	t.Helper()
	b, err := f.books.CreateBook(context.Background(), CreateBookInput{
		Title:         title,
		AuthorName:    "Some Author",
		GenreName:     "Fiction",
		PublishedYear: 1990,
		Stock:         stock,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) stock(t *testing.T, book *model.Book) int {
	t.Helper()
	b, err := f.books.GetBook(context.Background(), book.ID.Value())
	require.NoError(t, err)
	return b.Stock
}
