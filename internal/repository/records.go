package repository

import (
	"fmt"
	"time"

	"library/internal/model"
)

type bookRecord struct {
	ID            uint   `gorm:"primaryKey"`
	Title         string `gorm:"size:255;not null;index"`
	AuthorName    string `gorm:"size:200;not null;index"`
	GenreName     string `gorm:"size:100;not null"`
	PublishedYear int    `gorm:"not null"`
	Stock         int    `gorm:"not null;default:0;check:stock >= 0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (bookRecord) TableName() string { return "books" }

type userRecord struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:150;not null;uniqueIndex"`
	Email        string `gorm:"size:254;not null;uniqueIndex"`
	FirstName    string `gorm:"size:150"`
	LastName     string `gorm:"size:150"`
	Role         string `gorm:"size:20;not null;index"`
	PasswordHash string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

type loanRecord struct {
	ID         uint       `gorm:"primaryKey"`
	StudentID  uint       `gorm:"not null;index"`
	BookID     uint       `gorm:"not null;index"`
	BorrowedAt time.Time  `gorm:"not null;index"`
	ReturnedAt *time.Time `gorm:"index"`

	Student userRecord `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	Book    bookRecord `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
}

func (loanRecord) TableName() string { return "loans" }

func bookToRecord(b *model.Book) bookRecord {
	return bookRecord{
		ID:            uint(b.ID.Value()),
		Title:         b.Title,
		AuthorName:    b.AuthorName,
		GenreName:     b.GenreName,
		PublishedYear: b.PublishedYear,
		Stock:         b.Stock,
	}
}

func bookFromRecord(r bookRecord) model.Book {
	return model.Book{
		ID:            model.Assigned(model.ID(r.ID)),
		Title:         r.Title,
		AuthorName:    r.AuthorName,
		GenreName:     r.GenreName,
		PublishedYear: r.PublishedYear,
		Stock:         r.Stock,
	}
}

func userToRecord(u *model.User) userRecord {
	return userRecord{
		ID:        uint(u.ID.Value()),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role.String(),
	}
}

func userFromRecord(r userRecord) (model.User, error) {
	role, err := model.ParseRole(r.Role)
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", r.ID, err)
	}
	return model.User{
		ID:        model.Assigned(model.ID(r.ID)),
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      role,
	}, nil
}

func loanToRecord(l *model.Loan) (loanRecord, error) {
	studentID, ok := l.Student.ID.Get()
	if !ok {
		return loanRecord{}, fmt.Errorf("loan student has no identity")
	}
	bookID, ok := l.Book.ID.Get()
	if !ok {
		return loanRecord{}, fmt.Errorf("loan book has no identity")
	}
	return loanRecord{
		ID:         uint(l.ID.Value()),
		StudentID:  uint(studentID),
		BookID:     uint(bookID),
		BorrowedAt: l.BorrowedAt,
		ReturnedAt: l.ReturnedAt,
	}, nil
}

func loanFromRecord(r loanRecord) (model.Loan, error) {
	student, err := userFromRecord(r.Student)
	if err != nil {
		return model.Loan{}, err
	}
	return model.Loan{
		ID:         model.Assigned(model.ID(r.ID)),
		Student:    student,
		Book:       bookFromRecord(r.Book),
		BorrowedAt: r.BorrowedAt,
		ReturnedAt: r.ReturnedAt,
	}, nil
}
