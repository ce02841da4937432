// internal/services/authorization_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
)

type Capability string

const (
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityArtist        Capability = "artist"
	CapabilityStaff         Capability = "staff"
)

// Identity is the acting user as seen by the service layer.
type Identity struct {
	UserID         uuid.UUID
	IsStaff        bool
	IsArtist       bool
	ArtistVerified bool
	Active         bool
}

// IdentityFromUser derives an Identity from a stored user.
func IdentityFromUser(u *models.User) Identity {
	return Identity{
		UserID:         u.ID,
		IsStaff:        u.IsStaff(),
		IsArtist:       u.IsArtist,
		ArtistVerified: u.IsVerifiedArtist(),
		Active:         u.Status == models.UserStatusActive,
	}
}

// RequireCapability is the guard every state-mutating operation calls first.
func RequireCapability(id Identity, capability Capability) error {
	if id.UserID == uuid.Nil || !id.Active {
		return fmt.Errorf("%w: an active account is required", ErrForbidden)
	}

	switch capability {
	case CapabilityAuthenticated:
		return nil
	case CapabilityArtist:
		if !id.ArtistVerified {
			return fmt.Errorf("%w: a verified artist account is required", ErrForbidden)
		}
		return nil
	case CapabilityStaff:
		if !id.IsStaff {
			return fmt.Errorf("%w: staff access is required", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown capability %q", ErrForbidden, capability)
	}
}

// AuthorizationService resolves identities from the database so capability
// changes apply without waiting for a new token.
type AuthorizationService struct {
	db *gorm.DB
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationService {
	return &AuthorizationService{db: db}
}

func (s *AuthorizationService) IdentityFor(userID uuid.UUID) (Identity, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, fmt.Errorf("user %w", ErrNotFound)
		}
		return Identity{}, fmt.Errorf("database error: %w", err)
	}
	return IdentityFromUser(&user), nil
}
