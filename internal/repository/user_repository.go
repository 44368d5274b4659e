package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library/internal/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	GetByID(ctx context.Context, id model.ID) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, id model.ID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetAll(ctx context.Context) ([]model.User, error)
	// Save inserts or updates user. A non-empty password replaces the stored
	// hash; an empty one keeps it.
	Save(ctx context.Context, user *model.User, password string) error
	Delete(ctx context.Context, id model.ID) (bool, error)
	FindByRole(ctx context.Context, role model.Role) ([]model.User, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	// PasswordHash returns the stored bcrypt hash for the given username.
	PasswordHash(ctx context.Context, username string) (*model.User, string, error)
}

type userRepository struct {
	db           *gorm.DB
	passwordCost int
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, passwordCost: DefaultPasswordCost}
}

func (r *userRepository) GetByID(ctx context.Context, id model.ID) (*model.User, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", uint(id))
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id model.ID) (*model.User, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", uint(id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx), "username = ?", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(r.db.WithContext(ctx), "LOWER(email) = ?", strings.ToLower(email))
}

func (r *userRepository) first(db *gorm.DB, query string, arg any) (*model.User, error) {
	var rec userRecord
	if err := db.Where(query, arg).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	user, err := userFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]model.User, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *userRepository) FindByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return r.find(r.db.WithContext(ctx).Where("role = ?", role.String()))
}

func (r *userRepository) find(db *gorm.DB) ([]model.User, error) {
	var recs []userRecord
	if err := db.Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(recs))
	for _, rec := range recs {
		user, err := userFromRecord(rec)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userRecord{}).Where("role = ?", role.String()).Count(&count).Error
	return count, err
}

func (r *userRepository) Save(ctx context.Context, user *model.User, password string) error {
	rec := userToRecord(user)
	columns := []string{"username", "email", "first_name", "last_name", "role"}
	if password != "" {
		hash, err := HashPassword(password, r.passwordCost)
		if err != nil {
			return err
		}
		rec.PasswordHash = hash
		columns = append(columns, "password_hash")
	}

	db := r.db.WithContext(ctx)
	if !user.ID.IsAssigned() {
		if err := db.Create(&rec).Error; err != nil {
			return err
		}
		user.ID = model.Assigned(model.ID(rec.ID))
		return nil
	}
	return db.Model(&userRecord{ID: rec.ID}).Select(columns).Updates(&rec).Error
}

func (r *userRepository) Delete(ctx context.Context, id model.ID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&userRecord{}, uint(id))
	return res.RowsAffected > 0, res.Error
}

func (r *userRepository) PasswordHash(ctx context.Context, username string) (*model.User, string, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error; err != nil {
		return nil, "", translate(err)
	}
	user, err := userFromRecord(rec)
	if err != nil {
		return nil, "", err
	}
	return &user, rec.PasswordHash, nil
}
