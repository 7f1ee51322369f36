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

// PostFilter narrows a post listing.
type PostFilter struct {
	Keyword string
	Page    int
}

// PostRepository is the data access contract for bulletin posts.
type PostRepository interface {
	List(ctx context.Context, caller models.Caller, filter PostFilter) (Page[models.Post], error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetVisibleByID(ctx context.Context, caller models.Caller, id uint) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	CreateBatch(ctx context.Context, posts []*models.Post) error
	Update(ctx context.Context, post *models.Post) error
	SoftDelete(ctx context.Context, caller models.Caller, id uint, at time.Time) error
	All(ctx context.Context) ([]models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a post repository backed by the given database.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) List(ctx context.Context, caller models.Caller, filter PostFilter) (Page[models.Post], error) {
	query := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(visibleTo(caller))

	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Page[models.Post]{}, fmt.Errorf("failed to count posts: %w", err)
	}

	page, totalPages, offset := clampPage(filter.Page, total)

	var posts []models.Post
	if err := query.Order("updated_at DESC").Limit(PageSize).Offset(offset).Find(&posts).Error; err != nil {
		return Page[models.Post]{}, fmt.Errorf("failed to list posts: %w", err)
	}

	return Page[models.Post]{Records: posts, Number: page, TotalPages: totalPages, Total: total}, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.db.WithContext(ctx).First(&post, id).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("post", id)
		}
		return nil, err
	}
	return &post, nil
}

// GetVisibleByID resolves a post only when the caller is allowed to see it
// under the listing visibility rules.
func (r *postRepository) GetVisibleByID(ctx context.Context, caller models.Caller, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Scopes(visibleTo(caller)).First(&post, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("post", id)
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// CreateBatch inserts the rows of a validated import inside one transaction.
func (r *postRepository) CreateBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, post := range posts {
			if err := tx.Create(post).Error; err != nil {
				return fmt.Errorf("failed to import post: %w", err)
			}
		}
		return nil
	})
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) SoftDelete(ctx context.Context, caller models.Caller, id uint, at time.Time) error {
	post, err := r.GetVisibleByID(ctx, caller, id)
	if err != nil {
		return err
	}
	post.SoftDelete(caller.ID, at)
	post.UpdatedUserID = caller.ID
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// All returns every post including soft-deleted ones, newest update first.
// Used by the export endpoint only.
func (r *postRepository) All(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	return posts, nil
}
