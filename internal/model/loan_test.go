package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "library/internal/errors"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func student() User {
	return User{ID: Assigned(1), Username: "alice", Email: "alice@example.com", Role: RoleStudent}
}

func TestLoan_Validate(t *testing.T) {
	returnedEarly := t0.Add(-time.Hour)

	tests := []struct {
		name    string
		loan    func() *Loan
		wantErr *apperrors.BusinessError
	}{
		{
			name: "valid active loan",
			loan: func() *Loan { return NewLoan(student(), validBook(), t0) },
		},
		{
			name: "librarian cannot borrow",
			loan: func() *Loan {
				u := student()
				u.Role = RoleLibrarian
				return NewLoan(u, validBook(), t0)
			},
			wantErr: apperrors.ErrNotAStudent,
		},
		{
			name: "book without stock",
			loan: func() *Loan {
				b := validBook()
				b.Stock = 0
				return NewLoan(student(), b, t0)
			},
			wantErr: apperrors.ErrNoStock,
		},
		{
			name: "returned loan of book without stock is fine",
			loan: func() *Loan {
				b := validBook()
				b.Stock = 0
				l := NewLoan(student(), b, t0)
				at := t0.Add(time.Hour)
				l.ReturnedAt = &at
				return l
			},
		},
		{
			name: "returned before borrowed",
			loan: func() *Loan {
				l := NewLoan(student(), validBook(), t0)
				l.ReturnedAt = &returnedEarly
				return l
			},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "invalid student snapshot",
			loan: func() *Loan {
				u := student()
				u.Email = "nope"
				return NewLoan(u, validBook(), t0)
			},
			wantErr: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loan().Validate()
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoan_ReturnBook(t *testing.T) {
	l := NewLoan(student(), validBook(), t0)
	l.Book.Stock = 0
	assert.True(t, l.IsActive())
	assert.Equal(t, LoanStatusActive, l.Status())

	err := l.ReturnBook(t0.Add(-time.Minute))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.True(t, l.IsActive())
	assert.Equal(t, 0, l.Book.Stock)

	t1 := t0.Add(48 * time.Hour)
	require.NoError(t, l.ReturnBook(t1))
	assert.True(t, l.IsReturned())
	assert.Equal(t, LoanStatusReturned, l.Status())
	assert.Equal(t, t1, *l.ReturnedAt)
	assert.Equal(t, 1, l.Book.Stock)

	err = l.ReturnBook(t1.Add(time.Hour))
	assert.True(t, errors.Is(err, apperrors.ErrLoanAlreadyReturned))
	assert.Equal(t, 1, l.Book.Stock)
	assert.Equal(t, t1, *l.ReturnedAt)
}

func TestActiveLoans(t *testing.T) {
	returned := NewLoan(student(), validBook(), t0)
	require.NoError(t, returned.ReturnBook(t0.Add(time.Hour)))
	active := NewLoan(student(), validBook(), t0)

	got := ActiveLoans([]Loan{*returned, *active})
	require.Len(t, got, 1)
	assert.True(t, got[0].IsActive())
}
