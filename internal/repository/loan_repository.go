package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library/internal/model"
)

// LoanRepository defines the interface for loan data operations. Loans are
// returned with the current state of their student and book.
type LoanRepository interface {
	GetByID(ctx context.Context, id model.ID) (*model.Loan, error)
	// GetByIDForUpdate locks the loan row, not its student or book.
	GetByIDForUpdate(ctx context.Context, id model.ID) (*model.Loan, error)
	GetAll(ctx context.Context) ([]model.Loan, error)
	// Save persists the loan's own fields only; the book is saved separately.
	Save(ctx context.Context, loan *model.Loan) error
	Delete(ctx context.Context, id model.ID) (bool, error)
	FindByStudent(ctx context.Context, studentID model.ID) ([]model.Loan, error)
	FindByBook(ctx context.Context, bookID model.ID) ([]model.Loan, error)
	FindActive(ctx context.Context) ([]model.Loan, error)
	FindReturned(ctx context.Context) ([]model.Loan, error)
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository.
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Student").Preload("Book")
}

func (r *loanRepository) GetByID(ctx context.Context, id model.ID) (*model.Loan, error) {
	return r.get(r.query(ctx), id)
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id model.ID) (*model.Loan, error) {
	return r.get(r.query(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *loanRepository) get(db *gorm.DB, id model.ID) (*model.Loan, error) {
	var rec loanRecord
	if err := db.First(&rec, uint(id)).Error; err != nil {
		return nil, translate(err)
	}
	loan, err := loanFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) GetAll(ctx context.Context) ([]model.Loan, error) {
	return r.find(r.query(ctx))
}

func (r *loanRepository) FindByStudent(ctx context.Context, studentID model.ID) ([]model.Loan, error) {
	return r.find(r.query(ctx).Where("student_id = ?", uint(studentID)))
}

func (r *loanRepository) FindByBook(ctx context.Context, bookID model.ID) ([]model.Loan, error) {
	return r.find(r.query(ctx).Where("book_id = ?", uint(bookID)))
}

func (r *loanRepository) FindActive(ctx context.Context) ([]model.Loan, error) {
	return r.find(r.query(ctx).Where("returned_at IS NULL"))
}

func (r *loanRepository) FindReturned(ctx context.Context) ([]model.Loan, error) {
	return r.find(r.query(ctx).Where("returned_at IS NOT NULL"))
}

func (r *loanRepository) find(db *gorm.DB) ([]model.Loan, error) {
	var recs []loanRecord
	if err := db.Order("borrowed_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	loans := make([]model.Loan, 0, len(recs))
	for _, rec := range recs {
		loan, err := loanFromRecord(rec)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

func (r *loanRepository) Save(ctx context.Context, loan *model.Loan) error {
	rec, err := loanToRecord(loan)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx).Omit(clause.Associations)
	if !loan.ID.IsAssigned() {
		if err := db.Create(&rec).Error; err != nil {
			return err
		}
		loan.ID = model.Assigned(model.ID(rec.ID))
		return nil
	}
	return db.Model(&loanRecord{ID: rec.ID}).
		Select("student_id", "book_id", "borrowed_at", "returned_at").
		Updates(&rec).Error
}

func (r *loanRepository) Delete(ctx context.Context, id model.ID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&loanRecord{}, uint(id))
	return res.RowsAffected > 0, res.Error
}
