package handler

import (
	"time"

	"library/internal/model"
)

// BookResponse is the wire form of a book.
type BookResponse struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	AuthorName    string `json:"author_name"`
	GenreName     string `json:"genre_name"`
	PublishedYear int    `json:"published_year"`
	Stock         int    `json:"stock"`
	Available     bool   `json:"available"`
}

// UserResponse is the wire form of a user. Password hashes never leave the store.
type UserResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// LoanUser is the student summary embedded in a loan.
type LoanUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// LoanBook is the book summary embedded in a loan.
type LoanBook struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// LoanResponse is the wire form of a loan.
type LoanResponse struct {
	ID         uint       `json:"id"`
	Student    LoanUser   `json:"student"`
	Book       LoanBook   `json:"book"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     string     `json:"status"`
}

func newBookResponse(b model.Book) BookResponse {
	return BookResponse{
		ID:            uint(b.ID.Value()),
		Title:         b.Title,
		AuthorName:    b.AuthorName,
		GenreName:     b.GenreName,
		PublishedYear: b.PublishedYear,
		Stock:         b.Stock,
		Available:     b.IsAvailable(),
	}
}

func newBookResponses(books []model.Book) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, newBookResponse(b))
	}
	return out
}

func newUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:        uint(u.ID.Value()),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role.String(),
	}
}

func newUserResponses(users []model.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	return out
}

func newLoanResponse(l model.Loan) LoanResponse {
	return LoanResponse{
		ID:         uint(l.ID.Value()),
		Student:    LoanUser{ID: uint(l.Student.ID.Value()), Username: l.Student.Username},
		Book:       LoanBook{ID: uint(l.Book.ID.Value()), Title: l.Book.Title},
		BorrowedAt: l.BorrowedAt,
		ReturnedAt: l.ReturnedAt,
		Status:     string(l.Status()),
	}
}

func newLoanResponses(loans []model.Loan) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, newLoanResponse(l))
	}
	return out
}
