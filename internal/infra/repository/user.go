package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/infra/database/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Take(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.NotFoundError{Resource: "user"}
		}
		return domain.User{}, err
	}
	return toDomainUser(user), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if uuid.Validate(id) != nil {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, domain.NotFoundError{Resource: "user"}
		}
		return domain.User{}, err
	}
	return toDomainUser(user), nil
}

// Upsert creates or refreshes an account by username. Used by seeding.
func (r *UserRepository) Upsert(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	row := models.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		DisplayName:  user.DisplayName,
		Role:         string(user.Role),
		IsActive:     user.IsActive,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "display_name", "role", "is_active"}),
	}).Create(&row).Error
}

func toDomainUser(user models.User) domain.User {
	return domain.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		DisplayName:  user.DisplayName,
		Role:         tracker.Role(user.Role),
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}
