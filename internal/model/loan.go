package model

import (
	"fmt"
	"time"

	"library/internal/errors"
)

// MaxActiveLoans is the number of books a student may hold at once.
const MaxActiveLoans = 3

// LoanStatus is the position of a loan in its lifecycle.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// Loan records a student borrowing one copy of a book. It carries snapshots of
// both so it can be validated on its own.
type Loan struct {
	ID         Identity   `json:"id"`
	Student    User       `json:"student"`
	Book       Book       `json:"book"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// NewLoan starts an active loan.
func NewLoan(student User, book Book, borrowedAt time.Time) *Loan {
	return &Loan{
		ID:         Unassigned(),
		Student:    student,
		Book:       book,
		BorrowedAt: borrowedAt,
	}
}

func (l Loan) String() string {
	return fmt.Sprintf("%s - %s (%s)", l.Book.Title, l.Student.Username, l.Status())
}

// IsReturned reports whether the loan reached its terminal state.
func (l Loan) IsReturned() bool {
	return l.ReturnedAt != nil
}

// IsActive reports whether the book is still out.
func (l Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// Status returns the lifecycle state.
func (l Loan) Status() LoanStatus {
	if l.IsReturned() {
		return LoanStatusReturned
	}
	return LoanStatusActive
}

// Validate checks the loan and the embedded student and book snapshots.
func (l Loan) Validate() error {
	if !l.Student.IsStudent() {
		return errors.Validation(errors.CodeNotAStudent, "only students can have loans")
	}
	if !l.Book.IsAvailable() && !l.IsReturned() {
		return errors.RuleViolation(errors.CodeNoStock, "book '%s' not available", l.Book.Title)
	}
	if l.ReturnedAt != nil && l.ReturnedAt.Before(l.BorrowedAt) {
		return errors.Validation(errors.CodeInvalidLoan, "invalid return date")
	}
	if err := l.Student.Validate(); err != nil {
		return err
	}
	return l.Book.Validate()
}

// ReturnBook moves the loan to Returned and puts the copy back on the shelf.
func (l *Loan) ReturnBook(returnDate time.Time) error {
	if l.IsReturned() {
		return errors.RuleViolation(errors.CodeLoanAlreadyReturned, "loan already returned")
	}
	if returnDate.Before(l.BorrowedAt) {
		return errors.Validation(errors.CodeInvalidLoan, "invalid return date")
	}
	l.ReturnedAt = &returnDate
	l.Book.IncreaseStock()
	return nil
}

// ActiveLoans filters loans down to the unreturned ones.
func ActiveLoans(loans []Loan) []Loan {
	active := make([]Loan, 0, len(loans))
	for _, l := range loans {
		if l.IsActive() {
			active = append(active, l)
		}
	}
	return active
}
