// internal/services/blog_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

// BlogService manages the news posts staff publish for artists and listeners.
type BlogService struct {
	db *gorm.DB
}

type CreateBlogCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

type CreateBlogPostRequest struct {
	Title            string     `json:"title" validate:"required,min=1,max=200"`
	CategoryID       *uuid.UUID `json:"category_id"`
	Content          string     `json:"content" validate:"required"`
	FeaturedImageURL string     `json:"featured_image_url" validate:"omitempty,url"`
}

type UpdateBlogPostRequest struct {
	Title            *string    `json:"title" validate:"omitempty,min=1,max=200"`
	CategoryID       *uuid.UUID `json:"category_id"`
	Content          *string    `json:"content" validate:"omitempty,min=1"`
	FeaturedImageURL *string    `json:"featured_image_url" validate:"omitempty,url"`
}

type BlogFilter struct {
	utils.PaginationParams
	CategorySlug string
}

func NewBlogService(db *gorm.DB) *BlogService {
	return &BlogService{db: db}
}

func (s *BlogService) ListCategories() ([]models.BlogCategory, error) {
	var categories []models.BlogCategory
	if err := s.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list blog categories: %w", err)
	}
	return categories, nil
}

func (s *BlogService) CreateCategory(identity Identity, req *CreateBlogCategoryRequest) (*models.BlogCategory, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	name := strings.TrimSpace(req.Name)
	category := &models.BlogCategory{Name: name, Slug: slug.Make(name)}
	if category.Slug == "" {
		return nil, newValidationError("name", "name must contain letters or digits")
	}

	var existing int64
	if err := s.db.Model(&models.BlogCategory{}).Where("slug = ?", category.Slug).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if existing > 0 {
		return nil, newValidationError("name", "a category with this name already exists")
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create blog category: %w", err)
	}
	return category, nil
}

// ListPosts returns posts newest first, optionally within one category.
func (s *BlogService) ListPosts(filter BlogFilter) ([]models.BlogPost, int64, error) {
	query := s.db.Model(&models.BlogPost{})

	if filter.CategorySlug != "" {
		query = query.Where("category_id IN (?)",
			s.db.Model(&models.BlogCategory{}).Select("id").Where("slug = ?", filter.CategorySlug))
	}
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count blog posts: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "views", "title"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var posts []models.BlogPost
	if err := query.Preload("Category").Preload("Author").Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list blog posts: %w", err)
	}
	return posts, total, nil
}

// GetPost loads a post by slug and counts the view.
func (s *BlogService) GetPost(postSlug string) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := s.db.Preload("Category").Preload("Author").First(&post, "slug = ?", postSlug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("blog post %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.db.Model(&post).UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		logrus.WithError(err).WithField("post_id", post.ID).Warn("Failed to count blog post view")
	} else {
		post.Views++
	}
	return &post, nil
}

func (s *BlogService) CreatePost(identity Identity, req *CreateBlogPostRequest) (*models.BlogPost, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.checkCategory(req.CategoryID); err != nil {
		return nil, err
	}

	post := &models.BlogPost{
		Title:            strings.TrimSpace(req.Title),
		Slug:             slugify(req.Title),
		AuthorID:         identity.UserID,
		CategoryID:       req.CategoryID,
		Content:          req.Content,
		FeaturedImageURL: req.FeaturedImageURL,
	}
	if err := s.db.Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create blog post: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"post_id":   post.ID,
		"author_id": identity.UserID,
	}).Info("Blog post published")
	return post, nil
}

func (s *BlogService) UpdatePost(identity Identity, postID uuid.UUID, req *UpdateBlogPostRequest) (*models.BlogPost, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	post, err := s.loadPost(postID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.FeaturedImageURL != nil {
		updates["featured_image_url"] = *req.FeaturedImageURL
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}

	if len(updates) > 0 {
		if err := s.db.Model(post).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update blog post: %w", err)
		}
	}
	return s.loadPost(post.ID)
}

func (s *BlogService) DeletePost(identity Identity, postID uuid.UUID) error {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return err
	}

	post, err := s.loadPost(postID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(post).Error; err != nil {
		return fmt.Errorf("failed to delete blog post: %w", err)
	}
	return nil
}

func (s *BlogService) loadPost(postID uuid.UUID) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := s.db.Preload("Category").First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("blog post %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &post, nil
}

func (s *BlogService) checkCategory(categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}
	var count int64
	if err := s.db.Model(&models.BlogCategory{}).Where("id = ?", *categoryID).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if count == 0 {
		return newValidationError("category_id", "unknown blog category")
	}
	return nil
}
