// internal/services/user_service.go
package services

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type UserService struct {
	db                  *gorm.DB
	storageService      *StorageService
	notificationService *NotificationService
}

type UpdateUserProfileRequest struct {
	Username    string                 `json:"username,omitempty" validate:"omitempty,username"`
	FirstName   *string                `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    *string                `json:"last_name,omitempty" validate:"omitempty,max=100"`
	ProfileData map[string]interface{} `json:"profile_data,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
}

type ArtistApplicationRequest struct {
	StageName string `json:"stage_name" validate:"required,min=2,max=100"`
	Bio       string `json:"bio" validate:"max=2000"`
	Location  string `json:"location" validate:"max=100"`
}

func NewUserService(db *gorm.DB, storageService *StorageService, notificationService *NotificationService) *UserService {
	return &UserService{
		db:                  db,
		storageService:      storageService,
		notificationService: notificationService,
	}
}

func (s *UserService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *UserService) GetPublicProfile(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Select("id, username, is_artist, artist_status, profile_data, created_at").
		First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(userID uuid.UUID, req *UpdateUserProfileRequest) (*models.User, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	// Check username uniqueness if updating
	if req.Username != "" && req.Username != user.Username {
		var existingUser models.User
		if err := s.db.Where("username = ? AND id != ?", req.Username, userID).First(&existingUser).Error; err == nil {
			return nil, newValidationError("username", "username already taken")
		}
		user.Username = req.Username
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}

	if req.ProfileData != nil {
		if user.ProfileData == nil {
			user.ProfileData = make(models.JSONB)
		}
		// Merge with existing profile data
		for key, value := range req.ProfileData {
			user.ProfileData[key] = value
		}
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

// UploadAvatar stores a profile picture and records its URL in profile_data.
func (s *UserService) UploadAvatar(userID uuid.UUID, file multipart.File, header *multipart.FileHeader) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.storageService.ValidateImage(file); err != nil {
		return nil, newValidationError("avatar", err.Error())
	}

	result, err := s.storageService.UploadFile(file, header, s.storageService.GetDefaultUploadOptions("avatars"))
	if err != nil {
		return nil, newValidationError("avatar", err.Error())
	}

	if user.ProfileData == nil {
		user.ProfileData = make(models.JSONB)
	}
	user.ProfileData["avatar_url"] = result.URL

	if err := s.db.Model(user).Update("profile_data", user.ProfileData).Error; err != nil {
		return nil, fmt.Errorf("failed to save avatar: %w", err)
	}
	return user, nil
}

// ApplyForArtist puts the user in the artist review queue.
func (s *UserService) ApplyForArtist(userID uuid.UUID, req *ArtistApplicationRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	switch user.ArtistStatus {
	case models.ArtistStatusPending:
		return nil, newValidationError("artist_status", "an artist application is already under review")
	case models.ArtistStatusVerified:
		return nil, newValidationError("artist_status", "account is already a verified artist")
	}

	if user.ProfileData == nil {
		user.ProfileData = make(models.JSONB)
	}
	user.ProfileData["stage_name"] = strings.TrimSpace(req.StageName)
	if req.Bio != "" {
		user.ProfileData["bio"] = req.Bio
	}
	if req.Location != "" {
		user.ProfileData["location"] = req.Location
	}
	user.IsArtist = true
	user.ArtistStatus = models.ArtistStatusPending

	if err := s.db.Model(user).Updates(map[string]interface{}{
		"is_artist":     true,
		"artist_status": models.ArtistStatusPending,
		"profile_data":  user.ProfileData,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to submit artist application: %w", err)
	}

	if err := s.notificationService.NotifyAdmins(
		"artist_application",
		"New artist application",
		fmt.Sprintf("%s applied to become an artist as %q.", user.Username, req.StageName),
		"user",
		&user.BaseModel,
	); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to notify staff of artist application")
	}

	return user, nil
}

// ChangePassword replaces the password after checking the current one. Any
// outstanding reset link stops working.
func (s *UserService) ChangePassword(userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}
	if req.CurrentPassword == req.NewPassword {
		return newValidationError("new_password", "must differ from the current password")
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.Model(user).Updates(map[string]interface{}{
		"password_hash":          user.PasswordHash,
		"reset_token_hash":       "",
		"reset_token_expires_at": nil,
	}).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	logrus.WithField("user_id", user.ID).Info("Password changed")
	return nil
}

func (s *UserService) DeleteAccount(userID uuid.UUID, password string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	// Verify password
	if err := user.CheckPassword(password); err != nil {
		return ErrInvalidCredentials
	}

	// Paid requests still need staff to finish distributing them, and a pending
	// payment may still settle against a pending request.
	inFlight := s.db.Model(&models.PaymentTransaction{}).
		Select("distribution_request_id").
		Where("status = ?", models.PaymentStatusPending)

	var openRequests int64
	err = s.db.Model(&models.DistributionRequest{}).
		Where("artist_id = ?", userID).
		Where(s.db.Where("status IN ?", []models.DistributionStatus{
			models.DistributionStatusPaid,
			models.DistributionStatusProcessing,
		}).Or("status = ? AND id IN (?)", models.DistributionStatusPending, inFlight)).
		Count(&openRequests).Error
	if err != nil {
		return fmt.Errorf("failed to check open distribution requests: %w", err)
	}

	if openRequests > 0 {
		return newValidationError("account", "cannot delete an account with paid or paying distribution requests in progress")
	}

	// Soft delete user
	if err := s.db.Delete(user).Error; err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}
