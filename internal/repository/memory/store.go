// Package memory provides an in-process repository.Store used by tests and
// by the server when STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"library/internal/model"
	"library/internal/repository"
)

type userRow struct {
	user model.User
	hash string
}

type loanRow struct {
	id         model.ID
	studentID  model.ID
	bookID     model.ID
	borrowedAt time.Time
	returnedAt *time.Time
}

type state struct {
	books    map[model.ID]model.Book
	users    map[model.ID]userRow
	loans    map[model.ID]loanRow
	nextBook model.ID
	nextUser model.ID
	nextLoan model.ID
}

func newState() *state {
	return &state{
		books: make(map[model.ID]model.Book),
		users: make(map[model.ID]userRow),
		loans: make(map[model.ID]loanRow),
	}
}

func (s *state) clone() *state {
	c := &state{
		books:    make(map[model.ID]model.Book, len(s.books)),
		users:    make(map[model.ID]userRow, len(s.users)),
		loans:    make(map[model.ID]loanRow, len(s.loans)),
		nextBook: s.nextBook,
		nextUser: s.nextUser,
		nextLoan: s.nextLoan,
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.loans {
		if v.returnedAt != nil {
			t := *v.returnedAt
			v.returnedAt = &t
		}
		c.loans[k] = v
	}
	return c
}

// Option configures a Store.
type Option func(*Store)

// WithPasswordCost sets the bcrypt cost used when saving passwords.
func WithPasswordCost(cost int) Option {
	return func(s *Store) {
		s.passwordCost = cost
	}
}

// Store is a map-backed repository.Store. Transactions are serialized and a
// failed transaction restores the data it started from.
type Store struct {
	txMu         sync.Mutex
	mu           sync.RWMutex
	data         *state
	passwordCost int
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{data: newState(), passwordCost: repository.DefaultPasswordCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Books() repository.BookRepository { return &bookRepository{s: s} }
func (s *Store) Users() repository.UserRepository { return &userRepository{s: s} }
func (s *Store) Loans() repository.LoanRepository { return &loanRepository{s: s} }

// WithTransaction runs fn while holding the store's transaction lock.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, txStore{s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the view handed to a running transaction. Nested transactions
// join the outer one.
type txStore struct {
	s *Store
}

func (t txStore) Books() repository.BookRepository { return t.s.Books() }
func (t txStore) Users() repository.UserRepository { return t.s.Users() }
func (t txStore) Loans() repository.LoanRepository { return t.s.Loans() }

func (t txStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, t)
}

type bookRepository struct{ s *Store }

func (r *bookRepository) GetByID(ctx context.Context, id model.ID) (*model.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.data.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r *bookRepository) GetByIDForUpdate(ctx context.Context, id model.ID) (*model.Book, error) {
	return r.GetByID(ctx, id)
}

func (r *bookRepository) GetAll(ctx context.Context) ([]model.Book, error) {
	return r.Find(ctx, repository.BookFilter{})
}

func (r *bookRepository) Find(ctx context.Context, filter repository.BookFilter) ([]model.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	books := make([]model.Book, 0, len(r.s.data.books))
	for _, b := range r.s.data.books {
		if filter.Matches(b) {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID.Value() < books[j].ID.Value() })
	return books, nil
}

func (r *bookRepository) Save(ctx context.Context, book *model.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !book.ID.IsAssigned() {
		r.s.data.nextBook++
		book.ID = model.Assigned(r.s.data.nextBook)
	}
	r.s.data.books[book.ID.Value()] = *book
	return nil
}

func (r *bookRepository) Delete(ctx context.Context, id model.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.books[id]; !ok {
		return false, nil
	}
	delete(r.s.data.books, id)
	for lid, l := range r.s.data.loans {
		if l.bookID == id {
			delete(r.s.data.loans, lid)
		}
	}
	return true, nil
}

func (r *bookRepository) ExistsByTitleAndAuthor(ctx context.Context, title, author string, exclude model.Identity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, b := range r.s.data.books {
		if exclude.Equal(b.ID) {
			continue
		}
		if strings.EqualFold(b.Title, title) && strings.EqualFold(b.AuthorName, author) {
			return true, nil
		}
	}
	return false, nil
}

type userRepository struct{ s *Store }

func (r *userRepository) GetByID(ctx context.Context, id model.ID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row.user, nil
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id model.ID) (*model.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepository) lookup(ctx context.Context, match func(model.User) bool) (*userRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.data.users {
		if match(row.user) {
			return &row, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row, err := r.lookup(ctx, func(u model.User) bool { return u.Username == username })
	if err != nil {
		return nil, err
	}
	return &row.user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row, err := r.lookup(ctx, func(u model.User) bool { return strings.EqualFold(u.Email, email) })
	if err != nil {
		return nil, err
	}
	return &row.user, nil
}

func (r *userRepository) PasswordHash(ctx context.Context, username string) (*model.User, string, error) {
	row, err := r.lookup(ctx, func(u model.User) bool { return u.Username == username })
	if err != nil {
		return nil, "", err
	}
	return &row.user, row.hash, nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]model.User, error) {
	return r.filter(ctx, func(model.User) bool { return true })
}

func (r *userRepository) FindByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return r.filter(ctx, func(u model.User) bool { return u.Role == role })
}

func (r *userRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	users, err := r.FindByRole(ctx, role)
	return int64(len(users)), err
}

func (r *userRepository) filter(ctx context.Context, match func(model.User) bool) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]model.User, 0, len(r.s.data.users))
	for _, row := range r.s.data.users {
		if match(row.user) {
			users = append(users, row.user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID.Value() < users[j].ID.Value() })
	return users, nil
}

func (r *userRepository) Save(ctx context.Context, user *model.User, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var hash string
	if password != "" {
		var err error
		if hash, err = repository.HashPassword(password, r.s.passwordCost); err != nil {
			return err
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !user.ID.IsAssigned() {
		r.s.data.nextUser++
		user.ID = model.Assigned(r.s.data.nextUser)
	} else if hash == "" {
		hash = r.s.data.users[user.ID.Value()].hash
	}
	r.s.data.users[user.ID.Value()] = userRow{user: *user, hash: hash}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id model.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[id]; !ok {
		return false, nil
	}
	delete(r.s.data.users, id)
	for lid, l := range r.s.data.loans {
		if l.studentID == id {
			delete(r.s.data.loans, lid)
		}
	}
	return true, nil
}

type loanRepository struct{ s *Store }

// resolve joins a loan row with the current student and book. Callers hold mu.
func (r *loanRepository) resolve(row loanRow) model.Loan {
	loan := model.Loan{
		ID:         model.Assigned(row.id),
		Student:    r.s.data.users[row.studentID].user,
		Book:       r.s.data.books[row.bookID],
		BorrowedAt: row.borrowedAt,
	}
	if row.returnedAt != nil {
		t := *row.returnedAt
		loan.ReturnedAt = &t
	}
	return loan
}

func (r *loanRepository) GetByID(ctx context.Context, id model.ID) (*model.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.data.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	loan := r.resolve(row)
	return &loan, nil
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id model.ID) (*model.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *loanRepository) filter(ctx context.Context, match func(loanRow) bool) ([]model.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	loans := make([]model.Loan, 0, len(r.s.data.loans))
	for _, row := range r.s.data.loans {
		if match(row) {
			loans = append(loans, r.resolve(row))
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].BorrowedAt.Equal(loans[j].BorrowedAt) {
			return loans[i].BorrowedAt.After(loans[j].BorrowedAt)
		}
		return loans[i].ID.Value() > loans[j].ID.Value()
	})
	return loans, nil
}

func (r *loanRepository) GetAll(ctx context.Context) ([]model.Loan, error) {
	return r.filter(ctx, func(loanRow) bool { return true })
}

func (r *loanRepository) FindByStudent(ctx context.Context, studentID model.ID) ([]model.Loan, error) {
	return r.filter(ctx, func(l loanRow) bool { return l.studentID == studentID })
}

func (r *loanRepository) FindByBook(ctx context.Context, bookID model.ID) ([]model.Loan, error) {
	return r.filter(ctx, func(l loanRow) bool { return l.bookID == bookID })
}

func (r *loanRepository) FindActive(ctx context.Context) ([]model.Loan, error) {
	return r.filter(ctx, func(l loanRow) bool { return l.returnedAt == nil })
}

func (r *loanRepository) FindReturned(ctx context.Context) ([]model.Loan, error) {
	return r.filter(ctx, func(l loanRow) bool { return l.returnedAt != nil })
}

func (r *loanRepository) Save(ctx context.Context, loan *model.Loan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	studentID, ok := loan.Student.ID.Get()
	if !ok {
		return errUnsavedReference
	}
	bookID, ok := loan.Book.ID.Get()
	if !ok {
		return errUnsavedReference
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[studentID]; !ok {
		return errUnsavedReference
	}
	if _, ok := r.s.data.books[bookID]; !ok {
		return errUnsavedReference
	}
	if !loan.ID.IsAssigned() {
		r.s.data.nextLoan++
		loan.ID = model.Assigned(r.s.data.nextLoan)
	}
	row := loanRow{
		id:         loan.ID.Value(),
		studentID:  studentID,
		bookID:     bookID,
		borrowedAt: loan.BorrowedAt,
	}
	if loan.ReturnedAt != nil {
		t := *loan.ReturnedAt
		row.returnedAt = &t
	}
	r.s.data.loans[row.id] = row
	return nil
}

func (r *loanRepository) Delete(ctx context.Context, id model.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.loans[id]; !ok {
		return false, nil
	}
	delete(r.s.data.loans, id)
	return true, nil
}
