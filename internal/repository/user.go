package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bulletinboard/internal/cache"
	"bulletinboard/internal/models"

	"gorm.io/gorm"
)

// UserFilter narrows a member listing. FromDate and ToDate bound the record
// creation date when supplied, formatted as 2006-01-02.
type UserFilter struct {
	Name     string
	Email    string
	FromDate string
	ToDate   string
	Page     int
}

// UserRepository is the data access contract for member accounts.
type UserRepository interface {
	List(ctx context.Context, caller models.Caller, filter UserFilter) (Page[models.User], error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetVisibleByID(ctx context.Context, caller models.Caller, id uint) (*models.User, error)
	ActiveByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SoftDelete(ctx context.Context, caller models.Caller, id uint, at time.Time) error
	NameOf(ctx context.Context, id uint) string
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository backed by the given database.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) List(ctx context.Context, caller models.Caller, filter UserFilter) (Page[models.User], error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Scopes(visibleTo(caller))

	name := strings.TrimSpace(filter.Name)
	email := strings.TrimSpace(filter.Email)
	switch {
	case name != "" && email != "":
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?",
			"%"+strings.ToLower(name)+"%", "%"+strings.ToLower(email)+"%")
	case name != "":
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	case email != "":
		query = query.Where("LOWER(email) LIKE ?", "%"+strings.ToLower(email)+"%")
	}
	if filter.FromDate != "" {
		query = query.Where("created_at >= ?", filter.FromDate)
	}
	if filter.ToDate != "" {
		// Upper bound is inclusive of the whole day.
		query = query.Where("created_at < ?", nextDay(filter.ToDate))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Page[models.User]{}, fmt.Errorf("failed to count users: %w", err)
	}

	page, totalPages, offset := clampPage(filter.Page, total)

	var users []models.User
	if err := query.Order("updated_at DESC").Limit(PageSize).Offset(offset).Find(&users).Error; err != nil {
		return Page[models.User]{}, fmt.Errorf("failed to list users: %w", err)
	}

	return Page[models.User]{Records: users, Number: page, TotalPages: totalPages, Total: total}, nil
}

// nextDay returns the day after a 2006-01-02 date string, falling back to the
// input when it does not parse.
func nextDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("user", id)
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetVisibleByID(ctx context.Context, caller models.Caller, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Scopes(visibleTo(caller)).First(&user, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("user", id)
		}
		return nil, err
	}
	return &user, nil
}

// ActiveByEmail resolves the non-deleted account holding the given login
// identity.
func (r *userRepository) ActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND delete_user_id IS NULL AND deleted_at IS NULL", email).
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("user", email)
		}
		return nil, err
	}
	return &user, nil
}

// emailTaken reports whether another non-deleted account already holds the
// email. The partial unique index in the SQL migrations enforces the same
// rule at the database level; this check makes the conflict deterministic on
// schemas created through AutoMigrate as well.
func (r *userRepository) emailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND delete_user_id IS NULL AND deleted_at IS NULL", email)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	taken, err := r.emailTaken(ctx, user.Email, 0)
	if err != nil {
		return err
	}
	if taken {
		return models.NewConflictError("email already exists")
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	taken, err := r.emailTaken(ctx, user.Email, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewConflictError("email already exists")
	}
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("email already exists")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) SoftDelete(ctx context.Context, caller models.Caller, id uint, at time.Time) error {
	user, err := r.GetVisibleByID(ctx, caller, id)
	if err != nil {
		return err
	}
	user.SoftDelete(caller.ID, at)
	user.UpdatedUserID = caller.ID
	user.IsActive = false
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// NameOf resolves a user id to a display name, returning the empty string
// when the id no longer resolves. Listing rows tolerate dangling audit ids.
func (r *userRepository) NameOf(ctx context.Context, id uint) string {
	if id == 0 {
		return ""
	}
	var user models.User
	if err := r.db.WithContext(ctx).Select("name").First(&user, id).Error; err != nil {
		return ""
	}
	return user.Name
}
