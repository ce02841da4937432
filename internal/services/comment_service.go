// internal/services/comment_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type CommentService struct {
	db *gorm.DB
}

type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// CommentTarget names the track or the album a comment is attached to.
type CommentTarget struct {
	TrackID *uuid.UUID
	AlbumID *uuid.UUID
}

func TrackTarget(id uuid.UUID) CommentTarget { return CommentTarget{TrackID: &id} }

func AlbumTarget(id uuid.UUID) CommentTarget { return CommentTarget{AlbumID: &id} }

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

func (s *CommentService) Add(identity Identity, target CommentTarget, req *CreateCommentRequest) (*models.Comment, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newValidationError("text", "comment cannot be empty")
	}
	if _, err := s.targetUploader(target); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		TrackID: target.TrackID,
		AlbumID: target.AlbumID,
		UserID:  identity.UserID,
		Text:    text,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	if err := s.db.Preload("User").First(comment, "id = ?", comment.ID).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return comment, nil
}

// List returns the target's comments, newest first.
func (s *CommentService) List(target CommentTarget, params utils.PaginationParams) ([]models.Comment, int64, error) {
	if _, err := s.targetUploader(target); err != nil {
		return nil, 0, err
	}

	query := s.db.Model(&models.Comment{})
	if target.TrackID != nil {
		query = query.Where("track_id = ?", *target.TrackID)
	} else {
		query = query.Where("album_id = ?", *target.AlbumID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var comments []models.Comment
	if err := query.Preload("User").Find(&comments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}

// Delete is allowed for the author, the uploader of the commented track or
// album, and staff.
func (s *CommentService) Delete(identity Identity, commentID uuid.UUID) error {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return err
	}

	var comment models.Comment
	if err := s.db.First(&comment, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("comment %w", ErrNotFound)
		}
		return fmt.Errorf("database error: %w", err)
	}

	if comment.UserID != identity.UserID && !identity.IsStaff {
		uploader, err := s.targetUploader(CommentTarget{TrackID: comment.TrackID, AlbumID: comment.AlbumID})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if uploader != identity.UserID {
			return fmt.Errorf("%w: not your comment", ErrForbidden)
		}
	}

	if err := s.db.Delete(&comment).Error; err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"comment_id": comment.ID,
		"deleted_by": identity.UserID,
	}).Info("Comment deleted")
	return nil
}

// targetUploader checks the target exists and returns who uploaded it.
func (s *CommentService) targetUploader(target CommentTarget) (uuid.UUID, error) {
	switch {
	case target.TrackID != nil:
		var track models.Track
		if err := s.db.Select("id", "uploader_id").First(&track, "id = ?", *target.TrackID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, fmt.Errorf("track %w", ErrNotFound)
			}
			return uuid.Nil, fmt.Errorf("database error: %w", err)
		}
		return track.UploaderID, nil
	case target.AlbumID != nil:
		var album models.Album
		if err := s.db.Select("id", "uploader_id").First(&album, "id = ?", *target.AlbumID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, fmt.Errorf("album %w", ErrNotFound)
			}
			return uuid.Nil, fmt.Errorf("database error: %w", err)
		}
		return album.UploaderID, nil
	default:
		return uuid.Nil, newValidationError("target", "a comment needs a track or an album")
	}
}
