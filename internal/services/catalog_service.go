// internal/services/catalog_service.go
package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/database"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type CatalogService struct {
	db             *gorm.DB
	storageService *StorageService
}

type CreateAlbumRequest struct {
	Title       string       `json:"title" validate:"required,min=1,max=200"`
	Artist      string       `json:"artist" validate:"max=200"`
	Genre       models.Genre `json:"genre" validate:"required"`
	ReleaseDate *time.Time   `json:"release_date,omitempty"`
	CoverArtURL string       `json:"cover_art_url" validate:"omitempty,url"`
	Description string       `json:"description" validate:"max=5000"`
}

// UpdateAlbumRequest changes only the fields that are set.
type UpdateAlbumRequest struct {
	Title       *string       `json:"title" validate:"omitempty,min=1,max=200"`
	Artist      *string       `json:"artist" validate:"omitempty,max=200"`
	Genre       *models.Genre `json:"genre"`
	ReleaseDate *time.Time    `json:"release_date"`
	CoverArtURL *string       `json:"cover_art_url" validate:"omitempty,url"`
	Description *string       `json:"description" validate:"omitempty,max=5000"`
}

// CreateTrackRequest is bound from the multipart form that carries the audio file.
type CreateTrackRequest struct {
	Title           string     `form:"title" validate:"required,min=1,max=200"`
	Artist          string     `form:"artist" validate:"max=200"`
	Genre           string     `form:"genre" validate:"required"`
	AlbumID         *uuid.UUID `form:"-"` // parsed by the handler
	DurationSeconds int        `form:"duration_seconds" validate:"min=0"`
	TrackNumber     int        `form:"track_number" validate:"min=0"`
}

// UpdateTrackRequest changes only the fields that are set. DetachAlbum takes
// the track out of its album.
type UpdateTrackRequest struct {
	Title           *string       `json:"title" validate:"omitempty,min=1,max=200"`
	Artist          *string       `json:"artist" validate:"omitempty,max=200"`
	Genre           *models.Genre `json:"genre"`
	AlbumID         *uuid.UUID    `json:"album_id"`
	DetachAlbum     bool          `json:"detach_album"`
	DurationSeconds *int          `json:"duration_seconds" validate:"omitempty,min=0"`
	TrackNumber     *int          `json:"track_number" validate:"omitempty,min=1"`
}

// UploadsSummary is the uploader's own catalog with totals.
type UploadsSummary struct {
	Albums         []models.Album `json:"albums"`
	Tracks         []models.Track `json:"tracks"`
	TotalAlbums    int64          `json:"total_albums"`
	TotalTracks    int64          `json:"total_tracks"`
	TotalDownloads int64          `json:"total_downloads"`
	TotalLikes     int64          `json:"total_likes"`
}

// LikeResult is the caller's like state after a toggle.
type LikeResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

type TrackFilter struct {
	utils.PaginationParams
	AlbumID    *uuid.UUID
	UploaderID *uuid.UUID
}

func NewCatalogService(db *gorm.DB, storageService *StorageService) *CatalogService {
	return &CatalogService{
		db:             db,
		storageService: storageService,
	}
}

func (s *CatalogService) CreateAlbum(identity Identity, req *CreateAlbumRequest) (*models.Album, error) {
	if err := RequireCapability(identity, CapabilityArtist); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !req.Genre.Valid() {
		return nil, newValidationError("genre", fmt.Sprintf("unknown genre %q", req.Genre))
	}

	artist, err := s.artistName(identity.UserID, req.Artist)
	if err != nil {
		return nil, err
	}

	album := &models.Album{
		Title:       strings.TrimSpace(req.Title),
		Slug:        slugify(req.Title),
		Artist:      artist,
		Genre:       req.Genre,
		ReleaseDate: req.ReleaseDate,
		CoverArtURL: req.CoverArtURL,
		Description: strings.TrimSpace(req.Description),
		UploaderID:  identity.UserID,
	}

	if err := s.db.Create(album).Error; err != nil {
		return nil, fmt.Errorf("failed to create album: %w", err)
	}
	return album, nil
}

// CreateTrack uploads the audio file and records the track. Uploading the
// same audio twice is rejected per uploader.
func (s *CatalogService) CreateTrack(identity Identity, req *CreateTrackRequest, file multipart.File, header *multipart.FileHeader) (*models.Track, error) {
	if err := RequireCapability(identity, CapabilityArtist); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	genre := models.Genre(strings.ToLower(req.Genre))
	if !genre.Valid() {
		return nil, newValidationError("genre", fmt.Sprintf("unknown genre %q", req.Genre))
	}
	if file == nil || header == nil {
		return nil, newValidationError("audio", "an audio file is required")
	}

	if req.AlbumID != nil {
		var album models.Album
		if err := s.db.Where("id = ? AND uploader_id = ?", *req.AlbumID, identity.UserID).First(&album).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newValidationError("album_id", "album not found")
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
	}

	if err := s.storageService.ValidateAudio(file); err != nil {
		return nil, newValidationError("audio", err.Error())
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	checksum := utils.FileChecksum(data)

	var duplicates int64
	s.db.Model(&models.Track{}).
		Where("uploader_id = ? AND audio_checksum = ?", identity.UserID, checksum).
		Count(&duplicates)
	if duplicates > 0 {
		return nil, newValidationError("audio", "this audio file has already been uploaded")
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind audio: %w", err)
	}

	artist, err := s.artistName(identity.UserID, req.Artist)
	if err != nil {
		return nil, err
	}

	upload, err := s.storageService.UploadFile(file, header, s.storageService.GetDefaultUploadOptions("audio"))
	if err != nil {
		return nil, newValidationError("audio", err.Error())
	}

	trackNumber := req.TrackNumber
	if trackNumber == 0 {
		trackNumber = 1
	}

	track := &models.Track{
		Title:           strings.TrimSpace(req.Title),
		Slug:            slugify(req.Title),
		AlbumID:         req.AlbumID,
		Artist:          artist,
		Genre:           genre,
		AudioURL:        upload.URL,
		AudioKey:        upload.Key,
		AudioChecksum:   checksum,
		DurationSeconds: req.DurationSeconds,
		TrackNumber:     trackNumber,
		UploaderID:      identity.UserID,
	}

	if err := s.db.Create(track).Error; err != nil {
		if delErr := s.storageService.DeleteFile(upload.Key); delErr != nil {
			logrus.WithError(delErr).WithField("key", upload.Key).Warn("Failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to create track: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"track_id":    track.ID,
		"uploader_id": identity.UserID,
		"size":        upload.Size,
	}).Info("Track uploaded")

	return track, nil
}

func (s *CatalogService) ListTracks(filter TrackFilter) ([]models.Track, int64, error) {
	query := s.db.Model(&models.Track{})

	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(artist) LIKE ?", term, term)
	}
	if filter.Genre != "" {
		query = query.Where("genre = ?", strings.ToLower(filter.Genre))
	}
	if filter.AlbumID != nil {
		query = query.Where("album_id = ?", *filter.AlbumID)
	}
	if filter.UploaderID != nil {
		query = query.Where("uploader_id = ?", *filter.UploaderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tracks: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "title", "downloads"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var tracks []models.Track
	if err := query.Find(&tracks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, total, nil
}

func (s *CatalogService) GetTrack(trackID uuid.UUID) (*models.Track, error) {
	var track models.Track
	if err := s.db.Preload("Album").First(&track, "id = ?", trackID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if err := s.db.Model(&models.TrackLike{}).Where("track_id = ?", track.ID).Count(&track.LikesCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	return &track, nil
}

// UpdateTrack edits the uploader's track metadata. The audio file is fixed.
func (s *CatalogService) UpdateTrack(identity Identity, trackID uuid.UUID, req *UpdateTrackRequest) (*models.Track, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	track, err := ownedTrack(s.db, identity, trackID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Artist != nil {
		updates["artist"] = strings.TrimSpace(*req.Artist)
	}
	if req.Genre != nil {
		genre := models.Genre(strings.ToLower(string(*req.Genre)))
		if !genre.Valid() {
			return nil, newValidationError("genre", fmt.Sprintf("unknown genre %q", *req.Genre))
		}
		updates["genre"] = genre
	}
	if req.DurationSeconds != nil {
		updates["duration_seconds"] = *req.DurationSeconds
	}
	if req.TrackNumber != nil {
		updates["track_number"] = *req.TrackNumber
	}
	switch {
	case req.DetachAlbum:
		updates["album_id"] = nil
	case req.AlbumID != nil:
		if _, err := ownedAlbum(s.db, identity, *req.AlbumID); err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
				return nil, newValidationError("album_id", "album not found")
			}
			return nil, err
		}
		updates["album_id"] = *req.AlbumID
	}

	if len(updates) > 0 {
		if err := s.db.Model(track).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update track: %w", err)
		}
	}

	return s.GetTrack(track.ID)
}

// DeleteTrack removes the uploader's track. A track that an open distribution
// request still carries cannot be deleted.
func (s *CatalogService) DeleteTrack(identity Identity, trackID uuid.UUID) error {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return err
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		track, err := ownedTrack(tx, identity, trackID)
		if err != nil {
			return err
		}
		if err := refuseOpenRequests(tx, []uuid.UUID{track.ID}); err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", track.ID).Delete(&models.TrackLike{}).Error; err != nil {
			return fmt.Errorf("failed to delete likes: %w", err)
		}
		if err := tx.Delete(track).Error; err != nil {
			return fmt.Errorf("failed to delete track: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"track_id":    track.ID,
			"uploader_id": identity.UserID,
		}).Info("Track deleted")
		return nil
	})
}

// DownloadTrack counts a download and returns where the audio can be fetched.
func (s *CatalogService) DownloadTrack(trackID uuid.UUID) (string, error) {
	var track models.Track
	if err := s.db.First(&track, "id = ?", trackID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("track %w", ErrNotFound)
		}
		return "", fmt.Errorf("database error: %w", err)
	}
	if track.AudioURL == "" && track.AudioKey == "" {
		return "", fmt.Errorf("track audio %w", ErrNotFound)
	}

	if err := s.db.Model(&track).UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error; err != nil {
		return "", fmt.Errorf("failed to count download: %w", err)
	}

	return s.storageService.DownloadURL(track.AudioKey, track.AudioURL)
}

// ToggleLike likes the track for the caller, or removes an existing like.
func (s *CatalogService) ToggleLike(identity Identity, trackID uuid.UUID) (*LikeResult, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}

	result := &LikeResult{}
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var track models.Track
		if err := tx.Select("id").First(&track, "id = ?", trackID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("track %w", ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}

		removed := tx.Where("track_id = ? AND user_id = ?", trackID, identity.UserID).Delete(&models.TrackLike{})
		if removed.Error != nil {
			return fmt.Errorf("failed to remove like: %w", removed.Error)
		}
		if removed.RowsAffected == 0 {
			like := &models.TrackLike{TrackID: trackID, UserID: identity.UserID}
			if err := tx.Create(like).Error; err != nil {
				return fmt.Errorf("failed to add like: %w", err)
			}
			result.Liked = true
		}

		return tx.Model(&models.TrackLike{}).Where("track_id = ?", trackID).Count(&result.LikesCount).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MyUploads lists the caller's albums and the tracks outside any album.
func (s *CatalogService) MyUploads(identity Identity) (*UploadsSummary, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}

	summary := &UploadsSummary{}
	if err := s.db.Where("uploader_id = ?", identity.UserID).Order("created_at DESC").Find(&summary.Albums).Error; err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	if err := s.db.Where("uploader_id = ? AND album_id IS NULL", identity.UserID).Order("created_at DESC").Find(&summary.Tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	summary.TotalAlbums = int64(len(summary.Albums))

	var totals struct {
		Tracks    int64
		Downloads int64
	}
	if err := s.db.Model(&models.Track{}).
		Select("COUNT(*) AS tracks, COALESCE(SUM(downloads), 0) AS downloads").
		Where("uploader_id = ?", identity.UserID).
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to total uploads: %w", err)
	}
	summary.TotalTracks = totals.Tracks
	summary.TotalDownloads = totals.Downloads

	if err := s.db.Model(&models.TrackLike{}).
		Joins("JOIN tracks ON tracks.id = track_likes.track_id").
		Where("tracks.uploader_id = ? AND tracks.deleted_at IS NULL", identity.UserID).
		Count(&summary.TotalLikes).Error; err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	return summary, nil
}

func (s *CatalogService) ListAlbums(params utils.PaginationParams) ([]models.Album, int64, error) {
	query := s.db.Model(&models.Album{})
	if params.Search != "" {
		term := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(artist) LIKE ?", term, term)
	}
	if params.Genre != "" {
		query = query.Where("genre = ?", strings.ToLower(params.Genre))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count albums: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "title", "release_date"})
	query = utils.ApplyPagination(query, params)

	var albums []models.Album
	if err := query.Find(&albums).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list albums: %w", err)
	}
	return albums, total, nil
}

func (s *CatalogService) GetAlbum(albumID uuid.UUID) (*models.Album, error) {
	var album models.Album
	err := s.db.Preload("Tracks", func(db *gorm.DB) *gorm.DB {
		return db.Order("track_number ASC, created_at ASC")
	}).First(&album, "id = ?", albumID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("album %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &album, nil
}

func (s *CatalogService) UpdateAlbum(identity Identity, albumID uuid.UUID, req *UpdateAlbumRequest) (*models.Album, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	album, err := ownedAlbum(s.db, identity, albumID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Artist != nil {
		updates["artist"] = strings.TrimSpace(*req.Artist)
	}
	if req.Genre != nil {
		if !req.Genre.Valid() {
			return nil, newValidationError("genre", fmt.Sprintf("unknown genre %q", *req.Genre))
		}
		updates["genre"] = *req.Genre
	}
	if req.ReleaseDate != nil {
		updates["release_date"] = *req.ReleaseDate
	}
	if req.CoverArtURL != nil {
		updates["cover_art_url"] = *req.CoverArtURL
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}

	if len(updates) > 0 {
		if err := s.db.Model(album).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update album: %w", err)
		}
	}

	return s.GetAlbum(album.ID)
}

// DeleteAlbum removes the album with its tracks, unless one of those tracks
// is still carried by an open distribution request.
func (s *CatalogService) DeleteAlbum(identity Identity, albumID uuid.UUID) error {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return err
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		album, err := ownedAlbum(tx, identity, albumID)
		if err != nil {
			return err
		}

		var trackIDs []uuid.UUID
		if err := tx.Model(&models.Track{}).Where("album_id = ?", album.ID).Pluck("id", &trackIDs).Error; err != nil {
			return fmt.Errorf("failed to load album tracks: %w", err)
		}
		if len(trackIDs) > 0 {
			if err := refuseOpenRequests(tx, trackIDs); err != nil {
				return err
			}
			if err := tx.Where("track_id IN ?", trackIDs).Delete(&models.TrackLike{}).Error; err != nil {
				return fmt.Errorf("failed to delete likes: %w", err)
			}
			if err := tx.Where("id IN ?", trackIDs).Delete(&models.Track{}).Error; err != nil {
				return fmt.Errorf("failed to delete album tracks: %w", err)
			}
		}
		if err := tx.Delete(album).Error; err != nil {
			return fmt.Errorf("failed to delete album: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"album_id":    album.ID,
			"tracks":      len(trackIDs),
			"uploader_id": identity.UserID,
		}).Info("Album deleted")
		return nil
	})
}

func ownedTrack(db *gorm.DB, identity Identity, trackID uuid.UUID) (*models.Track, error) {
	var track models.Track
	if err := db.First(&track, "id = ?", trackID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if track.UploaderID != identity.UserID {
		return nil, fmt.Errorf("%w: not your track", ErrForbidden)
	}
	return &track, nil
}

func ownedAlbum(db *gorm.DB, identity Identity, albumID uuid.UUID) (*models.Album, error) {
	var album models.Album
	if err := db.First(&album, "id = ?", albumID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("album %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if album.UploaderID != identity.UserID {
		return nil, fmt.Errorf("%w: not your album", ErrForbidden)
	}
	return &album, nil
}

// refuseOpenRequests fails with ErrConflict when any of the tracks belongs to
// a request that is not finished yet.
func refuseOpenRequests(tx *gorm.DB, trackIDs []uuid.UUID) error {
	var open int64
	if err := requestTrackIDs(tx, openStatuses...).
		Where("distribution_request_tracks.track_id IN ?", trackIDs).
		Count(&open).Error; err != nil {
		return fmt.Errorf("failed to check distribution requests: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("%w: tracks are part of a distribution request in progress", ErrConflict)
	}
	return nil
}

// artistName falls back to the stage name from the artist application.
func (s *CatalogService) artistName(userID uuid.UUID, requested string) (string, error) {
	if name := strings.TrimSpace(requested); name != "" {
		return name, nil
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}
	if stage, ok := user.ProfileData["stage_name"].(string); ok && stage != "" {
		return stage, nil
	}
	return user.Username, nil
}

// slugify transliterates the title into a URL slug and appends a short
// random suffix so equal titles do not collide.
func slugify(title string) string {
	base := slug.Make(title)
	if len(base) > 200 {
		base = strings.TrimRight(base[:200], "-")
	}
	suffix := uuid.NewString()[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
