// Package testutil holds database and fixture helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nyasabox/nyasabox-api/internal/database"
	"github.com/nyasabox/nyasabox-api/internal/models"
)

// NewTestDB opens a private in-memory SQLite database with every table migrated.
// It uses a single connection, so code under test must keep using the
// transaction handle inside a transaction.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

const DefaultPassword = "Password123!"

func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		UserType:  models.UserTypeUser,
		Status:    models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword(DefaultPassword))
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateArtist creates a user whose artist application has been approved.
func CreateArtist(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := CreateUser(t, db, username)
	user.IsArtist = true
	user.ArtistStatus = models.ArtistStatusVerified
	require.NoError(t, db.Save(user).Error)
	return user
}

func CreateStaff(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := CreateUser(t, db, username)
	user.UserType = models.UserTypeAdmin
	require.NoError(t, db.Save(user).Error)
	return user
}

func CreateTrack(t *testing.T, db *gorm.DB, uploader *models.User, title string) *models.Track {
	t.Helper()

	track := &models.Track{
		Title:      title,
		Slug:       fmt.Sprintf("%s-%s", title, uuid.NewString()[:8]),
		Artist:     uploader.Username,
		Genre:      models.GenreAfrobeat,
		AudioURL:   "https://cdn.example.com/audio/" + title + ".mp3",
		UploaderID: uploader.ID,
	}
	require.NoError(t, db.Create(track).Error)
	return track
}

// CreateTracks creates n tracks for uploader.
func CreateTracks(t *testing.T, db *gorm.DB, uploader *models.User, n int) []models.Track {
	t.Helper()

	tracks := make([]models.Track, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, *CreateTrack(t, db, uploader, fmt.Sprintf("track-%d", i+1)))
	}
	return tracks
}

func CreatePlatform(t *testing.T, db *gorm.DB, name string) *models.DistributionPlatform {
	t.Helper()

	platform := &models.DistributionPlatform{Name: name, IsActive: true}
	require.NoError(t, db.Create(platform).Error)
	return platform
}

// Sent is one message captured by RecordingNotifier.
type Sent struct {
	Template string
	To       string
	Data     map[string]interface{}
	At       time.Time
}

// RecordingNotifier keeps every message instead of delivering it.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Sent
	Err  error
}

func (n *RecordingNotifier) Send(ctx context.Context, templateID, to string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Sent{Template: templateID, To: to, Data: data, At: time.Now()})
	return n.Err
}

// Count returns how many messages used templateID.
func (n *RecordingNotifier) Count(templateID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.Sent {
		if s.Template == templateID {
			count++
		}
	}
	return count
}
