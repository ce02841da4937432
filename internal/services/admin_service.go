// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

// revenueStatuses are the request states that represent money received.
var revenueStatuses = []models.DistributionStatus{
	models.DistributionStatusPaid,
	models.DistributionStatusProcessing,
	models.DistributionStatusDistributed,
}

type AdminService struct {
	db       *gorm.DB
	notifier Notifier
}

type AdminDashboardStats struct {
	TotalUsers        int64            `json:"total_users"`
	ActiveUsers       int64            `json:"active_users"`
	NewUsersThisMonth int64            `json:"new_users_this_month"`
	VerifiedArtists   int64            `json:"verified_artists"`
	PendingArtists    int64            `json:"pending_artists"`
	TotalAlbums       int64            `json:"total_albums"`
	TotalTracks       int64            `json:"total_tracks"`
	TotalRequests     int64            `json:"total_requests"`
	RequestsByStatus  map[string]int64 `json:"requests_by_status"`
	TotalTransactions int64            `json:"total_transactions"`
	TotalRevenue      decimal.Decimal  `json:"total_revenue"`
	RevenueLast30Days decimal.Decimal  `json:"revenue_last_30_days"`
	UnreadAdminAlerts int64            `json:"unread_admin_alerts"`
	UserGrowth        float64          `json:"user_growth"`
}

type PlatformRevenue struct {
	PlatformID   uuid.UUID       `json:"platform_id"`
	PlatformName string          `json:"platform_name"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	RequestCount int64           `json:"request_count"`
}

type RevenueReport struct {
	TotalRevenue      decimal.Decimal   `json:"total_revenue"`
	PaidRequests      int64             `json:"paid_requests"`
	RevenueLast30Days decimal.Decimal   `json:"revenue_last_30_days"`
	ByPlatform        []PlatformRevenue `json:"by_platform"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	UserType      *models.UserType     `json:"user_type,omitempty"`
	Status        *models.UserStatus   `json:"status,omitempty"`
	ArtistStatus  *models.ArtistStatus `json:"artist_status,omitempty"`
	CreatedAfter  *time.Time           `json:"created_after,omitempty"`
	CreatedBefore *time.Time           `json:"created_before,omitempty"`
}

type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active suspended banned"`
	Reason string            `json:"reason" validate:"max=500"`
}

type ArtistDecisionRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

func NewAdminService(db *gorm.DB, notifier Notifier) *AdminService {
	return &AdminService{
		db:       db,
		notifier: notifier,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(identity Identity) (*AdminDashboardStats, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}

	stats := &AdminDashboardStats{RequestsByStatus: make(map[string]int64)}
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	// User statistics
	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&stats.ActiveUsers)
	s.db.Model(&models.User{}).Where("created_at >= ?", monthStart).Count(&stats.NewUsersThisMonth)
	s.db.Model(&models.User{}).Where("artist_status = ?", models.ArtistStatusVerified).Count(&stats.VerifiedArtists)
	s.db.Model(&models.User{}).Where("artist_status = ?", models.ArtistStatusPending).Count(&stats.PendingArtists)

	// Catalog statistics
	s.db.Model(&models.Album{}).Count(&stats.TotalAlbums)
	s.db.Model(&models.Track{}).Count(&stats.TotalTracks)

	// Distribution statistics
	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := s.db.Model(&models.DistributionRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count distribution requests: %w", err)
	}
	for _, row := range byStatus {
		stats.RequestsByStatus[row.Status] = row.Count
		stats.TotalRequests += row.Count
	}

	s.db.Model(&models.PaymentTransaction{}).Count(&stats.TotalTransactions)
	s.db.Model(&models.AdminNotification{}).Where("status = ?", "unread").Count(&stats.UnreadAdminAlerts)

	var err error
	if stats.TotalRevenue, err = s.revenueSince(nil); err != nil {
		return nil, err
	}
	since := now.AddDate(0, 0, -30)
	if stats.RevenueLast30Days, err = s.revenueSince(&since); err != nil {
		return nil, err
	}

	// Growth calculations
	var lastMonthUsers int64
	s.db.Model(&models.User{}).
		Where("created_at >= ? AND created_at < ?", lastMonthStart, monthStart).
		Count(&lastMonthUsers)

	if lastMonthUsers > 0 {
		stats.UserGrowth = float64(stats.NewUsersThisMonth-lastMonthUsers) / float64(lastMonthUsers) * 100
	}

	return stats, nil
}

func (s *AdminService) GetRevenue(identity Identity) (*RevenueReport, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}

	report := &RevenueReport{ByPlatform: []PlatformRevenue{}}

	var err error
	if report.TotalRevenue, err = s.revenueSince(nil); err != nil {
		return nil, err
	}
	since := time.Now().UTC().AddDate(0, 0, -30)
	if report.RevenueLast30Days, err = s.revenueSince(&since); err != nil {
		return nil, err
	}

	s.db.Model(&models.DistributionRequest{}).
		Where("status IN ?", revenueStatuses).
		Count(&report.PaidRequests)

	var rows []struct {
		PlatformID   uuid.UUID
		PlatformName string
		TotalRevenue decimal.Decimal
		RequestCount int64
	}
	err = s.db.Table("distribution_platforms AS p").
		Select("p.id AS platform_id, p.name AS platform_name, "+
			"COALESCE(SUM(r.total_amount), 0) AS total_revenue, COUNT(r.id) AS request_count").
		Joins("LEFT JOIN distribution_request_platforms rp ON rp.distribution_platform_id = p.id").
		Joins("LEFT JOIN distribution_requests r ON r.id = rp.distribution_request_id "+
			"AND r.status IN ? AND r.deleted_at IS NULL", revenueStatuses).
		Where("p.deleted_at IS NULL").
		Group("p.id, p.name").
		Order("total_revenue DESC, p.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute revenue by platform: %w", err)
	}

	for _, row := range rows {
		report.ByPlatform = append(report.ByPlatform, PlatformRevenue{
			PlatformID:   row.PlatformID,
			PlatformName: row.PlatformName,
			TotalRevenue: row.TotalRevenue,
			RequestCount: row.RequestCount,
		})
	}

	return report, nil
}

// User Management
func (s *AdminService) GetUsers(identity Identity, filter AdminUserFilter) ([]models.User, int64, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, 0, err
	}

	query := s.db.Model(&models.User{})

	// Apply filters
	if filter.UserType != nil {
		query = query.Where("user_type = ?", *filter.UserType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ArtistStatus != nil {
		query = query.Where("artist_status = ?", *filter.ArtistStatus)
	}
	if filter.Search != "" {
		searchTerm := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	// Apply sorting and pagination
	allowedSortFields := []string{"created_at", "updated_at", "username", "email", "user_type", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) UpdateUserStatus(identity Identity, userID uuid.UUID, req *UpdateUserStatusRequest) (*models.User, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	if user.ID == identity.UserID {
		return nil, fmt.Errorf("%w: cannot change your own account status", ErrForbidden)
	}
	if user.UserType == models.UserTypeAdmin {
		return nil, fmt.Errorf("%w: cannot modify admin user status", ErrForbidden)
	}

	oldStatus := user.Status
	if err := s.db.Model(user).Update("status", req.Status).Error; err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	user.Status = req.Status

	s.createAuditLog(identity.UserID, "UPDATE_USER_STATUS", "user", &userID,
		map[string]interface{}{"from": oldStatus, "status": req.Status, "reason": req.Reason})

	return user, nil
}

// Artist approvals
func (s *AdminService) GetPendingArtists(identity Identity, params utils.PaginationParams) ([]models.User, int64, error) {
	pending := models.ArtistStatusPending
	return s.GetUsers(identity, AdminUserFilter{PaginationParams: params, ArtistStatus: &pending})
}

func (s *AdminService) ApproveArtist(ctx context.Context, identity Identity, userID uuid.UUID, req *ArtistDecisionRequest) (*models.User, error) {
	user, err := s.decideArtist(identity, userID, models.ArtistStatusVerified, req)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.Send(ctx, TemplateArtistApproved, user.Email, map[string]interface{}{
		"Username": user.Username,
		"Message":  req.Message,
	}); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send artist approval email")
	}
	return user, nil
}

func (s *AdminService) RejectArtist(ctx context.Context, identity Identity, userID uuid.UUID, req *ArtistDecisionRequest) (*models.User, error) {
	user, err := s.decideArtist(identity, userID, models.ArtistStatusRejected, req)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.Send(ctx, TemplateArtistRejected, user.Email, map[string]interface{}{
		"Username": user.Username,
		"Reason":   req.Message,
	}); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send artist rejection email")
	}
	return user, nil
}

func (s *AdminService) decideArtist(identity Identity, userID uuid.UUID, decision models.ArtistStatus, req *ArtistDecisionRequest) (*models.User, error) {
	if err := RequireCapability(identity, CapabilityStaff); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	result := s.db.Model(&models.User{}).
		Where("id = ? AND artist_status = ?", userID, models.ArtistStatusPending).
		Update("artist_status", decision)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update artist status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, newValidationError("artist_status", "user has no pending artist application")
	}
	user.ArtistStatus = decision

	s.createAuditLog(identity.UserID, "ARTIST_"+strings.ToUpper(string(decision)), "user", &userID,
		map[string]interface{}{"artist_status": decision, "message": req.Message})

	return user, nil
}

func (s *AdminService) revenueSince(since *time.Time) (decimal.Decimal, error) {
	query := s.db.Model(&models.DistributionRequest{}).Where("status IN ?", revenueStatuses)
	if since != nil {
		query = query.Where("payment_date >= ?", *since)
	}

	var row struct{ Total decimal.Decimal }
	if err := query.Select("COALESCE(SUM(total_amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return row.Total, nil
}

func (s *AdminService) findUser(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// Helper methods
func (s *AdminService) createAuditLog(userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, newValues map[string]interface{}) {
	auditLog := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    models.JSONB(newValues),
	}

	if err := s.db.Create(auditLog).Error; err != nil {
		logrus.WithError(err).WithField("action", action).Warn("Failed to write audit log")
	}
}
