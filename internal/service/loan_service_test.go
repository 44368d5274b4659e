package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

func TestLoanService_BorrowAndReturnScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dune := f.book(t, "Dune", 2)
	alice := f.student(t, "alice")
	bob := f.student(t, "bob")
	carol := f.student(t, "carol")

	aliceLoan, err := f.loans.CreateLoan(ctx, alice.ID.Value(), dune.ID.Value())
	require.NoError(t, err)
	assert.True(t, aliceLoan.ID.IsAssigned())
	assert.True(t, aliceLoan.IsActive())
	assert.Equal(t, f.now, aliceLoan.BorrowedAt)
	assert.Equal(t, 1, f.stock(t, dune))

	_, err = f.loans.CreateLoan(ctx, bob.ID.Value(), dune.ID.Value())
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, dune))

	_, err = f.loans.CreateLoan(ctx, carol.ID.Value(), dune.ID.Value())
	assert.ErrorIs(t, err, errors.ErrNoStock)
	assert.ErrorIs(t, err, errors.ErrRuleViolation)
	assert.Equal(t, 0, f.stock(t, dune))

	f.advance(72 * time.Hour)
	returned, err := f.loans.ReturnLoan(ctx, aliceLoan.ID.Value())
	require.NoError(t, err)
	assert.True(t, returned.IsReturned())
	assert.Equal(t, f.now, *returned.ReturnedAt)
	assert.Equal(t, 1, f.stock(t, dune))

	_, err = f.loans.ReturnLoan(ctx, aliceLoan.ID.Value())
	assert.ErrorIs(t, err, errors.ErrLoanAlreadyReturned)
	assert.Equal(t, 1, f.stock(t, dune))
}

func TestLoanService_CreateLoanPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		arrange func(t *testing.T, f *fixture) (studentID, bookID model.ID)
		wantErr error
	}{
		{
			name: "unknown student",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				return 999, f.book(t, "Dune", 1).ID.Value()
			},
			wantErr: errors.ErrUserNotFound,
		},
		{
			name: "librarian cannot borrow",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				return f.librarian(t, "libby").ID.Value(), f.book(t, "Dune", 1).ID.Value()
			},
			wantErr: errors.ErrNotAStudent,
		},
		{
			name: "student check precedes stock check",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				return f.librarian(t, "libby").ID.Value(), f.book(t, "Dune", 0).ID.Value()
			},
			wantErr: errors.ErrNotAStudent,
		},
		{
			name: "unknown book",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				return f.student(t, "alice").ID.Value(), 999
			},
			wantErr: errors.ErrBookNotFound,
		},
		{
			name: "no stock",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				return f.student(t, "alice").ID.Value(), f.book(t, "Dune", 0).ID.Value()
			},
			wantErr: errors.ErrNoStock,
		},
		{
			name: "duplicate active loan",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				alice := f.student(t, "alice")
				dune := f.book(t, "Dune", 5)
				_, err := f.loans.CreateLoan(context.Background(), alice.ID.Value(), dune.ID.Value())
				require.NoError(t, err)
				return alice.ID.Value(), dune.ID.Value()
			},
			wantErr: errors.ErrDuplicateActiveLoan,
		},
		{
			name: "borrowing limit",
			arrange: func(t *testing.T, f *fixture) (model.ID, model.ID) {
				alice := f.student(t, "alice")
				for i := 0; i < model.MaxActiveLoans; i++ {
					b := f.book(t, fmt.Sprintf("Book %d", i), 1)
					_, err := f.loans.CreateLoan(context.Background(), alice.ID.Value(), b.ID.Value())
					require.NoError(t, err)
				}
				return alice.ID.Value(), f.book(t, "One Too Many", 1).ID.Value()
			},
			wantErr: errors.ErrBorrowingLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			studentID, bookID := tt.arrange(t, f)

			before, _ := f.store.Books().GetByID(context.Background(), bookID)

			loan, err := f.loans.CreateLoan(context.Background(), studentID, bookID)
			assert.Nil(t, loan)
			assert.ErrorIs(t, err, tt.wantErr)

			if before != nil {
				after, err := f.store.Books().GetByID(context.Background(), bookID)
				require.NoError(t, err)
				assert.Equal(t, before.Stock, after.Stock)
			}
		})
	}
}

func TestLoanService_ReturnedLoansDoNotCountTowardsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.student(t, "alice")

	var first *model.Loan
	for i := 0; i < model.MaxActiveLoans; i++ {
		b := f.book(t, fmt.Sprintf("Book %d", i), 1)
		loan, err := f.loans.CreateLoan(ctx, alice.ID.Value(), b.ID.Value())
		require.NoError(t, err)
		if first == nil {
			first = loan
		}
	}
	_, err := f.loans.ReturnLoan(ctx, first.ID.Value())
	require.NoError(t, err)

	_, err = f.loans.CreateLoan(ctx, alice.ID.Value(), first.Book.ID.Value())
	assert.NoError(t, err)

	_, err = f.loans.CreateLoan(ctx, alice.ID.Value(), f.book(t, "Fourth", 1).ID.Value())
	assert.ErrorIs(t, err, errors.ErrBorrowingLimitReached)
}

func TestLoanService_ConcurrentBorrowOfLastCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.book(t, "Last Copy", 1)

	const borrowers = 8
	students := make([]*model.User, borrowers)
	for i := range students {
		students[i] = f.student(t, fmt.Sprintf("student%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		noStock   int
	)
	for _, s := range students {
		wg.Add(1)
		go func(id model.ID) {
			defer wg.Done()
			_, err := f.loans.CreateLoan(ctx, id, book.ID.Value())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errors.ErrNoStock):
				noStock++
			}
		}(s.ID.Value())
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, borrowers-1, noStock)
	assert.Equal(t, 0, f.stock(t, book))

	active, err := f.store.Loans().FindActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestLoanService_ReturnUnknownLoan(t *testing.T) {
	f := newFixture(t)
	_, err := f.loans.ReturnLoan(context.Background(), 42)
	assert.ErrorIs(t, err, errors.ErrLoanNotFound)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestLoanService_DeleteLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.student(t, "alice")
	dune := f.book(t, "Dune", 1)

	loan, err := f.loans.CreateLoan(ctx, alice.ID.Value(), dune.ID.Value())
	require.NoError(t, err)

	err = f.loans.DeleteLoan(ctx, loan.ID.Value())
	assert.ErrorIs(t, err, errors.ErrLoanStillActive)

	_, err = f.loans.ReturnLoan(ctx, loan.ID.Value())
	require.NoError(t, err)
	require.NoError(t, f.loans.DeleteLoan(ctx, loan.ID.Value()))
	assert.Equal(t, 1, f.stock(t, dune))

	err = f.loans.DeleteLoan(ctx, loan.ID.Value())
	assert.ErrorIs(t, err, errors.ErrLoanNotFound)
}

func TestLoanService_ListLoansIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	libby := f.librarian(t, "libby")
	alice := f.student(t, "alice")
	bob := f.student(t, "bob")
	dune := f.book(t, "Dune", 3)
	emma := f.book(t, "Emma", 3)

	aliceDune, err := f.loans.CreateLoan(ctx, alice.ID.Value(), dune.ID.Value())
	require.NoError(t, err)
	_, err = f.loans.CreateLoan(ctx, alice.ID.Value(), emma.ID.Value())
	require.NoError(t, err)
	_, err = f.loans.CreateLoan(ctx, bob.ID.Value(), dune.ID.Value())
	require.NoError(t, err)
	_, err = f.loans.ReturnLoan(ctx, aliceDune.ID.Value())
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller *model.User
		status LoanStatusFilter
		want   int
	}{
		{name: "librarian all", caller: libby, status: LoanStatusAll, want: 3},
		{name: "librarian active", caller: libby, status: LoanStatusActive, want: 2},
		{name: "librarian returned", caller: libby, status: LoanStatusReturned, want: 1},
		{name: "student all", caller: alice, status: LoanStatusAll, want: 2},
		{name: "student active", caller: alice, status: LoanStatusActive, want: 1},
		{name: "other student", caller: bob, status: LoanStatusReturned, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loans, err := f.loans.ListLoans(ctx, *tt.caller, tt.status)
			require.NoError(t, err)
			assert.Len(t, loans, tt.want)
			if !tt.caller.IsLibrarian() {
				for _, l := range loans {
					assert.True(t, l.Student.ID.Equal(tt.caller.ID))
				}
			}
		})
	}
}

func TestParseLoanStatusFilter(t *testing.T) {
	f, err := ParseLoanStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, LoanStatusAll, f)

	f, err = ParseLoanStatusFilter(" Active ")
	require.NoError(t, err)
	assert.Equal(t, LoanStatusActive, f)

	_, err = ParseLoanStatusFilter("overdue")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

type failingStore struct {
	repository.Store
	err error
}

func (s failingStore) Loans() repository.LoanRepository {
	return failingLoans{LoanRepository: s.Store.Loans(), err: s.err}
}

func (s failingStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, failingStore{Store: tx, err: s.err})
	})
}

type failingLoans struct {
	repository.LoanRepository
	err error
}

func (l failingLoans) Save(context.Context, *model.Loan) error {
	return l.err
}

func TestLoanService_InfrastructureErrorRollsBack(t *testing.T) {
	base := newFixture(t)
	alice := base.student(t, "alice")
	dune := base.book(t, "Dune", 1)

	diskFull := errors.New("disk full")
	f := newFixtureWithStore(t, failingStore{Store: base.store, err: diskFull})

	_, err := f.loans.CreateLoan(context.Background(), alice.ID.Value(), dune.ID.Value())
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, errors.Kind(0), errors.KindOf(err))
	assert.Equal(t, 1, base.stock(t, dune))
}
