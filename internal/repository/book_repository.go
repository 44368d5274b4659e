package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library/internal/model"
)

// BookRepository defines the interface for book data operations.
type BookRepository interface {
	GetByID(ctx context.Context, id model.ID) (*model.Book, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id model.ID) (*model.Book, error)
	GetAll(ctx context.Context) ([]model.Book, error)
	// Save inserts a book with an unassigned identity and updates it otherwise.
	// On insert the assigned identity is written back into book.
	Save(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id model.ID) (bool, error)
	Find(ctx context.Context, filter BookFilter) ([]model.Book, error)
	// ExistsByTitleAndAuthor matches case-insensitively, ignoring the book
	// identified by exclude.
	ExistsByTitleAndAuthor(ctx context.Context, title, author string, exclude model.Identity) (bool, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) GetByID(ctx context.Context, id model.ID) (*model.Book, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *bookRepository) GetByIDForUpdate(ctx context.Context, id model.ID) (*model.Book, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *bookRepository) get(db *gorm.DB, id model.ID) (*model.Book, error) {
	var rec bookRecord
	if err := db.First(&rec, uint(id)).Error; err != nil {
		return nil, translate(err)
	}
	book := bookFromRecord(rec)
	return &book, nil
}

func (r *bookRepository) GetAll(ctx context.Context) ([]model.Book, error) {
	return r.Find(ctx, BookFilter{})
}

func (r *bookRepository) Save(ctx context.Context, book *model.Book) error {
	rec := bookToRecord(book)
	db := r.db.WithContext(ctx)
	if !book.ID.IsAssigned() {
		if err := db.Create(&rec).Error; err != nil {
			return err
		}
		book.ID = model.Assigned(model.ID(rec.ID))
		return nil
	}
	return db.Model(&bookRecord{ID: rec.ID}).
		Select("title", "author_name", "genre_name", "published_year", "stock").
		Updates(&rec).Error
}

func (r *bookRepository) Delete(ctx context.Context, id model.ID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&bookRecord{}, uint(id))
	return res.RowsAffected > 0, res.Error
}

func (r *bookRepository) Find(ctx context.Context, filter BookFilter) ([]model.Book, error) {
	q := r.db.WithContext(ctx).Model(&bookRecord{})
	if filter.Title != "" {
		q = q.Where("LOWER(title) LIKE ?", likePattern(filter.Title))
	}
	if filter.Author != "" {
		q = q.Where("LOWER(author_name) LIKE ?", likePattern(filter.Author))
	}
	if filter.Genre != "" {
		q = q.Where("LOWER(genre_name) LIKE ?", likePattern(filter.Genre))
	}
	if filter.YearMin != nil {
		q = q.Where("published_year >= ?", *filter.YearMin)
	}
	if filter.YearMax != nil {
		q = q.Where("published_year <= ?", *filter.YearMax)
	}
	if filter.Year != nil {
		q = q.Where("published_year = ?", *filter.Year)
	}
	if filter.Stock != nil {
		q = q.Where("stock = ?", *filter.Stock)
	}
	if filter.Available != nil {
		if *filter.Available {
			q = q.Where("stock > 0")
		} else {
			q = q.Where("stock = 0")
		}
	}

	var recs []bookRecord
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	books := make([]model.Book, 0, len(recs))
	for _, rec := range recs {
		books = append(books, bookFromRecord(rec))
	}
	return books, nil
}

func (r *bookRepository) ExistsByTitleAndAuthor(ctx context.Context, title, author string, exclude model.Identity) (bool, error) {
	q := r.db.WithContext(ctx).Model(&bookRecord{}).
		Where("LOWER(title) = ? AND LOWER(author_name) = ?", strings.ToLower(title), strings.ToLower(author))
	if id, ok := exclude.Get(); ok {
		q = q.Where("id <> ?", uint(id))
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
