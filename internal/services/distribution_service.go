// internal/services/distribution_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nyasabox/nyasabox-api/internal/database"
	"github.com/nyasabox/nyasabox-api/internal/metrics"
	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/utils"
	"github.com/nyasabox/nyasabox-api/pkg/events"
)

// transitions is the distribution request adjacency table.
var transitions = map[models.DistributionStatus][]models.DistributionStatus{
	models.DistributionStatusPending: {
		models.DistributionStatusPaid,
		models.DistributionStatusRejected,
		models.DistributionStatusCancelled,
	},
	models.DistributionStatusPaid: {
		models.DistributionStatusProcessing,
		models.DistributionStatusDistributed,
		models.DistributionStatusRejected,
		models.DistributionStatusCancelled,
	},
	models.DistributionStatusProcessing: {
		models.DistributionStatusDistributed,
	},
}

// AllowedTransition reports whether from -> to is in the adjacency table.
func AllowedTransition(from, to models.DistributionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type DistributionService struct {
	db        *gorm.DB
	pricing   *PricingCalculator
	notifier  Notifier
	publisher events.Publisher
	metrics   *metrics.Metrics
}

type CreateDistributionRequest struct {
	TrackIDs    []uuid.UUID `json:"track_ids" validate:"required,min=1"`
	PlatformIDs []uuid.UUID `json:"platform_ids" validate:"required,min=1"`
}

type UpdateDistributionTracksRequest struct {
	TrackIDs []uuid.UUID `json:"track_ids" validate:"required,min=1"`
}

type UpdateDistributionStatusRequest struct {
	Status models.DistributionStatus `json:"status" validate:"required"`
	Notes  string                    `json:"notes" validate:"max=2000"`
}

type DistributionFilter struct {
	utils.PaginationParams
	Status   models.DistributionStatus `json:"status,omitempty"`
	ArtistID *uuid.UUID                `json:"artist_id,omitempty"`
}

func NewDistributionService(db *gorm.DB, pricing *PricingCalculator, notifier Notifier, publisher events.Publisher, m *metrics.Metrics) *DistributionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &DistributionService{
		db:        db,
		pricing:   pricing,
		notifier:  notifier,
		publisher: publisher,
		metrics:   m,
	}
}

// ListPlatforms returns the platforms a request can target.
func (s *DistributionService) ListPlatforms() ([]models.DistributionPlatform, error) {
	var platforms []models.DistributionPlatform
	if err := s.db.Where("is_active = ?", true).Order("name ASC").Find(&platforms).Error; err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	return platforms, nil
}

// ListEligibleTracks returns the artist's tracks that are not part of a
// distributed request.
func (s *DistributionService) ListEligibleTracks(identity Identity) ([]models.Track, error) {
	if err := RequireCapability(identity, CapabilityArtist); err != nil {
		return nil, err
	}

	var tracks []models.Track
	err := s.db.Where("uploader_id = ?", identity.UserID).
		Where("id NOT IN (?)", distributedTrackIDs(s.db)).
		Order("created_at DESC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible tracks: %w", err)
	}
	return tracks, nil
}

// Create opens a pending request for the given tracks and platforms.
func (s *DistributionService) Create(ctx context.Context, identity Identity, req CreateDistributionRequest) (*models.DistributionRequest, error) {
	if err := RequireCapability(identity, CapabilityArtist); err != nil {
		return nil, err
	}

	trackIDs := uniqueIDs(req.TrackIDs)
	platformIDs := uniqueIDs(req.PlatformIDs)
	if len(trackIDs) == 0 {
		return nil, newValidationError("track_ids", "select at least one track")
	}
	if len(platformIDs) == 0 {
		return nil, newValidationError("platform_ids", "select at least one platform")
	}

	var request *models.DistributionRequest
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		tracks, err := eligibleTracks(tx, identity.UserID, trackIDs)
		if err != nil {
			return err
		}
		platforms, err := activePlatforms(tx, platformIDs)
		if err != nil {
			return err
		}

		request = &models.DistributionRequest{
			ArtistID:    identity.UserID,
			RequestedAt: time.Now().UTC(),
			Status:      models.DistributionStatusPending,
			TotalAmount: s.pricing.Total(len(tracks)),
			Tracks:      tracks,
			Platforms:   platforms,
		}

		if err := tx.Omit("Tracks.*", "Platforms.*").Create(request).Error; err != nil {
			return fmt.Errorf("failed to create distribution request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id": request.ID,
		"artist_id":  identity.UserID,
		"tracks":     len(request.Tracks),
		"total":      request.TotalAmount.StringFixed(2),
	}).Info("Distribution request created")

	s.metrics.StatusTransition("new", string(models.DistributionStatusPending))
	s.publish(ctx, events.RoutingRequestCreated, request, "")

	return request, nil
}

// Get returns a request with its tracks, platforms and payment attempts.
// Only the owning artist and staff may read it.
func (s *DistributionService) Get(identity Identity, requestID uuid.UUID) (*models.DistributionRequest, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var request models.DistributionRequest
	err := s.db.Preload("Tracks").Preload("Platforms").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("initiated_at DESC")
		}).
		First(&request, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("distribution request %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if request.ArtistID != identity.UserID && !identity.IsStaff {
		return nil, fmt.Errorf("%w: not your distribution request", ErrForbidden)
	}
	return &request, nil
}

// History lists the caller's own requests, newest first.
func (s *DistributionService) History(identity Identity, params utils.PaginationParams) ([]models.DistributionRequest, int64, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, 0, err
	}

	artistID := identity.UserID
	return s.list(DistributionFilter{PaginationParams: params, ArtistID: &artistID})
}

// AdminList lists every request, optionally filtered by status.
func (s *DistributionService) AdminList(identity Identity, filter DistributionFilter) ([]models.DistributionRequest, int64, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, newValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}

	return s.list(filter)
}

func (s *DistributionService) list(filter DistributionFilter) ([]models.DistributionRequest, int64, error) {
	query := s.db.Model(&models.DistributionRequest{})
	if filter.ArtistID != nil {
		query = query.Where("artist_id = ?", *filter.ArtistID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count distribution requests: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"requested_at", "status", "total_amount"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var requests []models.DistributionRequest
	if err := query.Preload("Artist").Preload("Tracks").Preload("Platforms").Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list distribution requests: %w", err)
	}
	return requests, total, nil
}

// UpdateTracks replaces the track set of a pending request and recomputes its total.
// It is refused while a payment attempt is still pending.
func (s *DistributionService) UpdateTracks(ctx context.Context, identity Identity, requestID uuid.UUID, req UpdateDistributionTracksRequest) (*models.DistributionRequest, error) {
	if err := RequireCapability(identity, CapabilityArtist); err != nil {
		return nil, err
	}

	trackIDs := uniqueIDs(req.TrackIDs)
	if len(trackIDs) == 0 {
		return nil, newValidationError("track_ids", "select at least one track")
	}

	var request models.DistributionRequest
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("distribution request %w", ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}
		if request.ArtistID != identity.UserID {
			return fmt.Errorf("%w: not your distribution request", ErrForbidden)
		}
		if request.Status != models.DistributionStatusPending {
			return newValidationError("status", "tracks can only be changed while the request is pending")
		}

		var pendingPayments int64
		if err := tx.Model(&models.PaymentTransaction{}).
			Where("distribution_request_id = ? AND status = ?", request.ID, models.PaymentStatusPending).
			Count(&pendingPayments).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if pendingPayments > 0 {
			return newValidationError("track_ids", "a payment for this request is in progress")
		}

		tracks, err := eligibleTracks(tx, identity.UserID, trackIDs)
		if err != nil {
			return err
		}

		if err := tx.Model(&request).Association("Tracks").Replace(tracks); err != nil {
			return fmt.Errorf("failed to update tracks: %w", err)
		}

		request.TotalAmount = s.pricing.Total(len(tracks))
		if err := tx.Model(&request).Update("total_amount", request.TotalAmount).Error; err != nil {
			return fmt.Errorf("failed to update total: %w", err)
		}
		request.Tracks = tracks
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id": request.ID,
		"tracks":     len(request.Tracks),
		"total":      request.TotalAmount.StringFixed(2),
	}).Info("Distribution request tracks updated")

	return &request, nil
}

// UpdateStatus is the staff transition. paid is reserved for payment
// reconciliation and cannot be set here.
func (s *DistributionService) UpdateStatus(ctx context.Context, identity Identity, requestID uuid.UUID, req UpdateDistributionStatusRequest) (*models.DistributionRequest, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, newValidationError("status", fmt.Sprintf("unknown status %q", req.Status))
	}

	var (
		request models.DistributionRequest
		from    models.DistributionStatus
	)
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("distribution request %w", ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}

		from = request.Status
		if req.Status == models.DistributionStatusPaid || !AllowedTransition(from, req.Status) {
			return &InvalidTransitionError{From: from, To: req.Status}
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"status": req.Status}
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			updates["staff_notes"] = notes
		}
		if req.Status == models.DistributionStatusDistributed {
			updates["distributed_date"] = now
		}

		result := tx.Model(&models.DistributionRequest{}).
			Where("id = ? AND status = ?", request.ID, from).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return &InvalidTransitionError{From: from, To: req.Status}
		}

		return tx.Preload("Artist").First(&request, "id = ?", request.ID).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id": request.ID,
		"from":       from,
		"to":         request.Status,
		"staff_id":   identity.UserID,
	}).Info("Distribution request status updated")

	s.afterTransition(ctx, &request, from)
	s.notifyStatus(ctx, &request)

	return &request, nil
}

// afterTransition records a committed status change.
func (s *DistributionService) afterTransition(ctx context.Context, request *models.DistributionRequest, from models.DistributionStatus) {
	s.metrics.StatusTransition(string(from), string(request.Status))
	s.publish(ctx, events.RoutingRequestStatusChanged, request, from)
}

func (s *DistributionService) notifyStatus(ctx context.Context, request *models.DistributionRequest) {
	if s.notifier == nil || request.Artist == nil {
		return
	}

	data := map[string]interface{}{
		"RequestID":  request.ID.String(),
		"ArtistName": request.Artist.FullName(),
		"Status":     string(request.Status),
		"Notes":      request.StaffNotes,
	}

	template := TemplateDistributionStatus
	if request.Status == models.DistributionStatusRejected {
		template = TemplateDistributionRejected
	}

	if err := s.notifier.Send(ctx, template, request.Artist.Email, data); err != nil {
		logrus.WithError(err).WithField("request_id", request.ID).Warn("Failed to send distribution status notification")
	}
}

func (s *DistributionService) publish(ctx context.Context, routingKey string, request *models.DistributionRequest, from models.DistributionStatus) {
	event := events.DistributionEvent{
		RequestID:  request.ID,
		ArtistID:   request.ArtistID,
		FromStatus: string(from),
		ToStatus:   string(request.Status),
		Amount:     request.TotalAmount.StringFixed(2),
		TrackCount: len(request.Tracks),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"routing_key": routingKey,
			"request_id":  request.ID,
		}).Warn("Failed to publish distribution event")
	}
}

// markRequestPaid moves a pending request to paid. It reports false when the
// request had already left pending.
func markRequestPaid(tx *gorm.DB, requestID uuid.UUID, chargeID string, paidAt time.Time) (bool, error) {
	result := tx.Model(&models.DistributionRequest{}).
		Where("id = ? AND status = ?", requestID, models.DistributionStatusPending).
		Updates(map[string]interface{}{
			"status":            models.DistributionStatusPaid,
			"payment_date":      paidAt,
			"payment_reference": chargeID,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark request paid: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// lockForUpdate takes a row lock where the dialect supports it. sqlite
// serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// openStatuses are the request states that still hold on to their tracks.
var openStatuses = []models.DistributionStatus{
	models.DistributionStatusPending,
	models.DistributionStatusPaid,
	models.DistributionStatusProcessing,
}

func requestTrackIDs(db *gorm.DB, statuses ...models.DistributionStatus) *gorm.DB {
	return db.Table("distribution_request_tracks").
		Select("distribution_request_tracks.track_id").
		Joins("JOIN distribution_requests ON distribution_requests.id = distribution_request_tracks.distribution_request_id").
		Where("distribution_requests.status IN ?", statuses)
}

func distributedTrackIDs(db *gorm.DB) *gorm.DB {
	return requestTrackIDs(db, models.DistributionStatusDistributed)
}

// eligibleTracks loads ids and fails unless every one belongs to the artist
// and is not already distributed.
func eligibleTracks(tx *gorm.DB, artistID uuid.UUID, ids []uuid.UUID) ([]models.Track, error) {
	var tracks []models.Track
	err := tx.Where("id IN ?", ids).
		Where("uploader_id = ?", artistID).
		Where("id NOT IN (?)", distributedTrackIDs(tx)).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	if len(tracks) != len(ids) {
		found := make(map[uuid.UUID]bool, len(tracks))
		for _, t := range tracks {
			found[t.ID] = true
		}
		var missing []string
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id.String())
			}
		}
		return nil, newValidationError("track_ids", "tracks not eligible for distribution: "+strings.Join(missing, ", "))
	}
	return tracks, nil
}

func activePlatforms(tx *gorm.DB, ids []uuid.UUID) ([]models.DistributionPlatform, error) {
	var platforms []models.DistributionPlatform
	if err := tx.Where("id IN ? AND is_active = ?", ids, true).Find(&platforms).Error; err != nil {
		return nil, fmt.Errorf("failed to load platforms: %w", err)
	}
	if len(platforms) != len(ids) {
		return nil, newValidationError("platform_ids", "one or more platforms are unknown or inactive")
	}
	return platforms, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
