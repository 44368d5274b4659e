package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

// LoanStatusFilter selects loans by lifecycle state.
type LoanStatusFilter string

const (
	LoanStatusAll      LoanStatusFilter = "all"
	LoanStatusActive   LoanStatusFilter = "active"
	LoanStatusReturned LoanStatusFilter = "returned"
)

// ParseLoanStatusFilter accepts all, active or returned. Empty means all.
func ParseLoanStatusFilter(s string) (LoanStatusFilter, error) {
	switch f := LoanStatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return LoanStatusAll, nil
	case LoanStatusAll, LoanStatusActive, LoanStatusReturned:
		return f, nil
	default:
		return "", errors.Validation(errors.CodeInvalidLoan, "unknown loan status %q", s)
	}
}

func (f LoanStatusFilter) matches(l model.Loan) bool {
	switch f {
	case LoanStatusActive:
		return l.IsActive()
	case LoanStatusReturned:
		return l.IsReturned()
	default:
		return true
	}
}

// LoanService runs the borrow and return workflow.
type LoanService interface {
	GetLoan(ctx context.Context, id model.ID) (*model.Loan, error)
	// ListLoans returns every loan to a librarian and only their own to a student.
	ListLoans(ctx context.Context, caller model.User, status LoanStatusFilter) ([]model.Loan, error)
	CreateLoan(ctx context.Context, studentID, bookID model.ID) (*model.Loan, error)
	ReturnLoan(ctx context.Context, loanID model.ID) (*model.Loan, error)
	DeleteLoan(ctx context.Context, loanID model.ID) error
}

type loanService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLoanService creates a new loan service.
func NewLoanService(store repository.Store, opts ...Option) LoanService {
	o := newOptions(opts)
	return &loanService{store: store, logger: o.logger, now: o.now}
}

func (s *loanService) GetLoan(ctx context.Context, id model.ID) (*model.Loan, error) {
	loan, err := s.store.Loans().GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, errors.CodeLoanNotFound, "loan", id)
	}
	return loan, nil
}

func (s *loanService) ListLoans(ctx context.Context, caller model.User, status LoanStatusFilter) ([]model.Loan, error) {
	var (
		loans []model.Loan
		err   error
	)
	switch {
	case !caller.IsLibrarian():
		loans, err = s.store.Loans().FindByStudent(ctx, caller.ID.Value())
	case status == LoanStatusActive:
		return s.wrapList(s.store.Loans().FindActive(ctx))
	case status == LoanStatusReturned:
		return s.wrapList(s.store.Loans().FindReturned(ctx))
	default:
		loans, err = s.store.Loans().GetAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	filtered := make([]model.Loan, 0, len(loans))
	for _, l := range loans {
		if status.matches(l) {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

func (s *loanService) wrapList(loans []model.Loan, err error) ([]model.Loan, error) {
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// CreateLoan borrows one copy of a book for a student. The student row is
// locked before the book row.
func (s *loanService) CreateLoan(ctx context.Context, studentID, bookID model.ID) (*model.Loan, error) {
	var loan *model.Loan
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		student, err := tx.Users().GetByIDForUpdate(ctx, studentID)
		if err != nil {
			return lookupError(err, errors.CodeUserNotFound, "user", studentID)
		}
		if !student.IsStudent() {
			return errors.Validation(errors.CodeNotAStudent, "user '%s' is not a student", student.Username)
		}

		book, err := tx.Books().GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return lookupError(err, errors.CodeBookNotFound, "book", bookID)
		}
		if !book.IsAvailable() {
			return errors.RuleViolation(errors.CodeNoStock, "book '%s' not available", book.Title)
		}

		loans, err := tx.Loans().FindByStudent(ctx, studentID)
		if err != nil {
			return fmt.Errorf("find loans of user %s: %w", studentID, err)
		}
		active := model.ActiveLoans(loans)
		for _, l := range active {
			if l.Book.ID.Equal(book.ID) {
				return errors.RuleViolation(errors.CodeDuplicateActiveLoan,
					"student '%s' already has an active loan for '%s'", student.Username, book.Title)
			}
		}
		if len(active) >= model.MaxActiveLoans {
			return errors.RuleViolation(errors.CodeBorrowingLimitReached,
				"student '%s' already has %d active loans", student.Username, len(active))
		}

		loan = model.NewLoan(*student, *book, s.now())
		if err := loan.Validate(); err != nil {
			return err
		}
		if err := loan.Book.DecreaseStock(); err != nil {
			return err
		}
		if err := tx.Books().Save(ctx, &loan.Book); err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		if err := tx.Loans().Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "loan rejected", "student_id", studentID, "book_id", bookID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan created",
		"loan_id", loan.ID.Value(), "student_id", studentID, "book_id", bookID, "stock", loan.Book.Stock)
	return loan, nil
}

// ReturnLoan closes an active loan and restocks its book. The loan row is
// locked before the book row.
func (s *loanService) ReturnLoan(ctx context.Context, loanID model.ID) (*model.Loan, error) {
	var loan *model.Loan
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		loan, err = tx.Loans().GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return lookupError(err, errors.CodeLoanNotFound, "loan", loanID)
		}
		if loan.IsReturned() {
			return errors.RuleViolation(errors.CodeLoanAlreadyReturned, "loan %s already returned", loanID)
		}

		bookID := loan.Book.ID.Value()
		book, err := tx.Books().GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return lookupError(err, errors.CodeBookNotFound, "book", bookID)
		}
		loan.Book = *book

		if err := loan.ReturnBook(s.now()); err != nil {
			return err
		}
		if err := tx.Books().Save(ctx, &loan.Book); err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		if err := tx.Loans().Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan returned", "loan_id", loanID, "book_id", loan.Book.ID.Value(), "stock", loan.Book.Stock)
	return loan, nil
}

func (s *loanService) DeleteLoan(ctx context.Context, loanID model.ID) error {
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		loan, err := tx.Loans().GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return lookupError(err, errors.CodeLoanNotFound, "loan", loanID)
		}
		if loan.IsActive() {
			return errors.RuleViolation(errors.CodeLoanStillActive, "loan %s is still active", loanID)
		}
		if _, err := tx.Loans().Delete(ctx, loanID); err != nil {
			return fmt.Errorf("delete loan %s: %w", loanID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "loan deleted", "loan_id", loanID)
	return nil
}
