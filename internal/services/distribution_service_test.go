package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/testutil"
	"github.com/nyasabox/nyasabox-api/internal/utils"
	"github.com/nyasabox/nyasabox-api/pkg/events"
)

type DistributionServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	service   *DistributionService
	notifier  *testutil.RecordingNotifier
	publisher *events.RecordingPublisher

	artist    *models.User
	staff     *models.User
	tracks    []models.Track
	platforms []models.DistributionPlatform
}

func (suite *DistributionServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = testutil.NewTestDB(suite.T())
	suite.notifier = &testutil.RecordingNotifier{}
	suite.publisher = &events.RecordingPublisher{}
	suite.service = NewDistributionService(
		suite.db,
		NewPricingCalculator(decimal.RequireFromString("1666.67")),
		suite.notifier,
		suite.publisher,
		nil,
	)

	suite.artist = testutil.CreateArtist(suite.T(), suite.db, "chikondi")
	suite.staff = testutil.CreateStaff(suite.T(), suite.db, "staffer")
	suite.tracks = testutil.CreateTracks(suite.T(), suite.db, suite.artist, 6)
	suite.platforms = []models.DistributionPlatform{
		*testutil.CreatePlatform(suite.T(), suite.db, "Spotify"),
		*testutil.CreatePlatform(suite.T(), suite.db, "Audiomack"),
	}
}

func (suite *DistributionServiceTestSuite) artistIdentity() Identity {
	return IdentityFromUser(suite.artist)
}

func (suite *DistributionServiceTestSuite) staffIdentity() Identity {
	return IdentityFromUser(suite.staff)
}

func (suite *DistributionServiceTestSuite) trackIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	for _, t := range suite.tracks[:n] {
		ids = append(ids, t.ID)
	}
	return ids
}

func (suite *DistributionServiceTestSuite) platformIDs() []uuid.UUID {
	return []uuid.UUID{suite.platforms[0].ID, suite.platforms[1].ID}
}

func (suite *DistributionServiceTestSuite) createRequest(n int) *models.DistributionRequest {
	request, err := suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		TrackIDs:    suite.trackIDs(n),
		PlatformIDs: suite.platformIDs(),
	})
	suite.Require().NoError(err)
	return request
}

func (suite *DistributionServiceTestSuite) forceStatus(request *models.DistributionRequest, status models.DistributionStatus) {
	suite.Require().NoError(suite.db.Model(&models.DistributionRequest{}).
		Where("id = ?", request.ID).Update("status", status).Error)
}

func (suite *DistributionServiceTestSuite) TestCreatePricesSixTracks() {
	request := suite.createRequest(6)

	suite.Equal(models.DistributionStatusPending, request.Status)
	suite.Equal("10000.02", request.TotalAmount.StringFixed(2))

	stored, err := suite.service.Get(suite.artistIdentity(), request.ID)
	suite.Require().NoError(err)
	suite.Len(stored.Tracks, 6)
	suite.Len(stored.Platforms, 2)
	suite.True(stored.TotalAmount.Equal(decimal.RequireFromString("10000.02")))
	suite.Equal([]string{events.RoutingRequestCreated}, suite.publisher.Keys())
}

func (suite *DistributionServiceTestSuite) TestCreateRejectsEmptySelections() {
	_, err := suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		PlatformIDs: suite.platformIDs(),
	})
	suite.ErrorIs(err, ErrValidation)

	_, err = suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		TrackIDs: suite.trackIDs(1),
	})
	suite.ErrorIs(err, ErrValidation)

	var count int64
	suite.db.Model(&models.DistributionRequest{}).Count(&count)
	suite.Zero(count)
}

func (suite *DistributionServiceTestSuite) TestCreateRejectsForeignTrack() {
	other := testutil.CreateArtist(suite.T(), suite.db, "other")
	foreign := testutil.CreateTrack(suite.T(), suite.db, other, "not-mine")

	_, err := suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		TrackIDs:    []uuid.UUID{suite.tracks[0].ID, foreign.ID},
		PlatformIDs: suite.platformIDs(),
	})

	var vErr *ValidationError
	suite.Require().ErrorAs(err, &vErr)
	suite.Equal("track_ids", vErr.Field)
	suite.Contains(vErr.Message, foreign.ID.String())

	var joins int64
	suite.db.Table("distribution_request_tracks").Count(&joins)
	suite.Zero(joins)
}

func (suite *DistributionServiceTestSuite) TestCreateRejectsInactivePlatform() {
	inactive := testutil.CreatePlatform(suite.T(), suite.db, "Retired")
	suite.Require().NoError(suite.db.Model(inactive).Update("is_active", false).Error)

	_, err := suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		TrackIDs:    suite.trackIDs(1),
		PlatformIDs: []uuid.UUID{inactive.ID},
	})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *DistributionServiceTestSuite) TestCreateRequiresVerifiedArtist() {
	listener := testutil.CreateUser(suite.T(), suite.db, "listener")

	_, err := suite.service.Create(suite.ctx, IdentityFromUser(listener), CreateDistributionRequest{
		TrackIDs:    suite.trackIDs(1),
		PlatformIDs: suite.platformIDs(),
	})
	suite.ErrorIs(err, ErrForbidden)
}

func (suite *DistributionServiceTestSuite) TestDistributedTracksAreNotEligible() {
	first := suite.createRequest(2)
	suite.forceStatus(first, models.DistributionStatusDistributed)

	eligible, err := suite.service.ListEligibleTracks(suite.artistIdentity())
	suite.Require().NoError(err)
	suite.Len(eligible, 4)
	for _, t := range eligible {
		suite.NotEqual(suite.tracks[0].ID, t.ID)
		suite.NotEqual(suite.tracks[1].ID, t.ID)
	}

	_, err = suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		TrackIDs:    []uuid.UUID{suite.tracks[0].ID},
		PlatformIDs: suite.platformIDs(),
	})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *DistributionServiceTestSuite) TestTracksInRejectedRequestStayEligible() {
	first := suite.createRequest(2)
	suite.forceStatus(first, models.DistributionStatusRejected)

	second, err := suite.service.Create(suite.ctx, suite.artistIdentity(), CreateDistributionRequest{
		TrackIDs:    suite.trackIDs(2),
		PlatformIDs: suite.platformIDs(),
	})
	suite.Require().NoError(err)
	suite.Equal("3333.34", second.TotalAmount.StringFixed(2))
}

func (suite *DistributionServiceTestSuite) TestAdjacencyTable() {
	all := []models.DistributionStatus{
		models.DistributionStatusPending,
		models.DistributionStatusPaid,
		models.DistributionStatusProcessing,
		models.DistributionStatusDistributed,
		models.DistributionStatusRejected,
		models.DistributionStatusCancelled,
	}
	allowed := map[[2]models.DistributionStatus]bool{
		{models.DistributionStatusPending, models.DistributionStatusPaid}:           true,
		{models.DistributionStatusPending, models.DistributionStatusRejected}:       true,
		{models.DistributionStatusPending, models.DistributionStatusCancelled}:      true,
		{models.DistributionStatusPaid, models.DistributionStatusProcessing}:        true,
		{models.DistributionStatusPaid, models.DistributionStatusDistributed}:       true,
		{models.DistributionStatusPaid, models.DistributionStatusRejected}:          true,
		{models.DistributionStatusPaid, models.DistributionStatusCancelled}:         true,
		{models.DistributionStatusProcessing, models.DistributionStatusDistributed}: true,
	}

	for _, from := range all {
		for _, to := range all {
			suite.Equal(allowed[[2]models.DistributionStatus{from, to}], AllowedTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func (suite *DistributionServiceTestSuite) TestProcessingCannotBeRejected() {
	request := suite.createRequest(1)

	paid, err := markRequestPaid(suite.db, request.ID, "nyasa-processing", time.Now().UTC())
	suite.Require().NoError(err)
	suite.True(paid)

	_, err = suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusProcessing,
	})
	suite.Require().NoError(err)

	_, err = suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusRejected,
	})
	var transitionErr *InvalidTransitionError
	suite.Require().ErrorAs(err, &transitionErr)
	suite.Equal(models.DistributionStatusProcessing, transitionErr.From)

	var stored models.DistributionRequest
	suite.Require().NoError(suite.db.First(&stored, "id = ?", request.ID).Error)
	suite.Equal(models.DistributionStatusProcessing, stored.Status)
}

func (suite *DistributionServiceTestSuite) TestUpdateStatusFullLifecycle() {
	request := suite.createRequest(3)

	paid, err := markRequestPaid(suite.db, request.ID, "nyasa-test", time.Now().UTC())
	suite.Require().NoError(err)
	suite.True(paid)

	updated, err := suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusProcessing,
	})
	suite.Require().NoError(err)
	suite.Equal(models.DistributionStatusProcessing, updated.Status)

	updated, err = suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusDistributed,
		Notes:  "Live on all platforms",
	})
	suite.Require().NoError(err)
	suite.Equal(models.DistributionStatusDistributed, updated.Status)
	suite.NotNil(updated.DistributedDate)
	suite.Equal("Live on all platforms", updated.StaffNotes)
	suite.Equal("nyasa-test", updated.PaymentReference)

	for _, to := range []models.DistributionStatus{
		models.DistributionStatusPending,
		models.DistributionStatusProcessing,
		models.DistributionStatusRejected,
		models.DistributionStatusCancelled,
	} {
		_, err = suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{Status: to})
		suite.ErrorIs(err, ErrInvalidTransition, "distributed -> %s", to)
	}

	suite.Equal(2, suite.notifier.Count(TemplateDistributionStatus))
}

func (suite *DistributionServiceTestSuite) TestStaffCannotSetPaid() {
	request := suite.createRequest(1)

	_, err := suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusPaid,
	})

	var tErr *InvalidTransitionError
	suite.Require().ErrorAs(err, &tErr)
	suite.Equal(models.DistributionStatusPending, tErr.From)
	suite.Equal(models.DistributionStatusPaid, tErr.To)
}

func (suite *DistributionServiceTestSuite) TestPendingCannotSkipToProcessing() {
	request := suite.createRequest(1)

	_, err := suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusProcessing,
	})
	suite.ErrorIs(err, ErrInvalidTransition)

	stored, err := suite.service.Get(suite.staffIdentity(), request.ID)
	suite.Require().NoError(err)
	suite.Equal(models.DistributionStatusPending, stored.Status)
}

func (suite *DistributionServiceTestSuite) TestRejectionNotifiesArtist() {
	request := suite.createRequest(1)

	_, err := suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusRejected,
		Notes:  "Audio quality too low",
	})
	suite.Require().NoError(err)

	suite.Require().Equal(1, suite.notifier.Count(TemplateDistributionRejected))
	sent := suite.notifier.Sent[0]
	suite.Equal(suite.artist.Email, sent.To)
	suite.Equal("Audio quality too low", sent.Data["Notes"])
	suite.Contains(suite.publisher.Keys(), events.RoutingRequestStatusChanged)
}

func (suite *DistributionServiceTestSuite) TestUpdateStatusRequiresStaff() {
	request := suite.createRequest(1)

	_, err := suite.service.UpdateStatus(suite.ctx, suite.artistIdentity(), request.ID, UpdateDistributionStatusRequest{
		Status: models.DistributionStatusCancelled,
	})
	suite.ErrorIs(err, ErrForbidden)
}

func (suite *DistributionServiceTestSuite) TestUpdateStatusUnknownRequest() {
	_, err := suite.service.UpdateStatus(suite.ctx, suite.staffIdentity(), uuid.New(), UpdateDistributionStatusRequest{
		Status: models.DistributionStatusCancelled,
	})
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *DistributionServiceTestSuite) TestMarkRequestPaidOnlyOnce() {
	request := suite.createRequest(1)

	first, err := markRequestPaid(suite.db, request.ID, "nyasa-1", time.Now().UTC())
	suite.Require().NoError(err)
	second, err := markRequestPaid(suite.db, request.ID, "nyasa-2", time.Now().UTC())
	suite.Require().NoError(err)

	suite.True(first)
	suite.False(second)

	var stored models.DistributionRequest
	suite.Require().NoError(suite.db.First(&stored, "id = ?", request.ID).Error)
	suite.Equal("nyasa-1", stored.PaymentReference)
	suite.NotNil(stored.PaymentDate)
}

func (suite *DistributionServiceTestSuite) TestUpdateTracksRecomputesTotal() {
	request := suite.createRequest(2)

	updated, err := suite.service.UpdateTracks(suite.ctx, suite.artistIdentity(), request.ID, UpdateDistributionTracksRequest{
		TrackIDs: suite.trackIDs(6),
	})
	suite.Require().NoError(err)
	suite.Equal("10000.02", updated.TotalAmount.StringFixed(2))

	stored, err := suite.service.Get(suite.artistIdentity(), request.ID)
	suite.Require().NoError(err)
	suite.Len(stored.Tracks, 6)
}

func (suite *DistributionServiceTestSuite) TestUpdateTracksFrozenAfterPending() {
	request := suite.createRequest(2)
	suite.forceStatus(request, models.DistributionStatusPaid)

	_, err := suite.service.UpdateTracks(suite.ctx, suite.artistIdentity(), request.ID, UpdateDistributionTracksRequest{
		TrackIDs: suite.trackIDs(3),
	})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *DistributionServiceTestSuite) TestUpdateTracksRefusedWhilePaymentPending() {
	request := suite.createRequest(2)
	suite.Require().NoError(suite.db.Create(&models.PaymentTransaction{
		ChargeID:              "nyasa-pending",
		DistributionRequestID: request.ID,
		Amount:                request.TotalAmount,
		Currency:              "MWK",
		Mobile:                "991234567",
		OperatorRefID:         "airtel-ref",
		Status:                models.PaymentStatusPending,
		InitiatedAt:           time.Now().UTC(),
	}).Error)

	_, err := suite.service.UpdateTracks(suite.ctx, suite.artistIdentity(), request.ID, UpdateDistributionTracksRequest{
		TrackIDs: suite.trackIDs(3),
	})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *DistributionServiceTestSuite) TestGetIsOwnerOrStaffOnly() {
	request := suite.createRequest(1)
	stranger := testutil.CreateUser(suite.T(), suite.db, "stranger")

	_, err := suite.service.Get(IdentityFromUser(stranger), request.ID)
	suite.ErrorIs(err, ErrForbidden)

	_, err = suite.service.Get(suite.staffIdentity(), request.ID)
	suite.NoError(err)

	_, err = suite.service.Get(suite.artistIdentity(), uuid.New())
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *DistributionServiceTestSuite) TestHistoryAndAdminList() {
	suite.createRequest(1)
	rejected := suite.createRequest(1)
	suite.forceStatus(rejected, models.DistributionStatusRejected)

	history, total, err := suite.service.History(suite.artistIdentity(), utils.PaginationParams{Page: 1, Limit: 10})
	suite.Require().NoError(err)
	suite.EqualValues(2, total)
	suite.Len(history, 2)

	list, total, err := suite.service.AdminList(suite.staffIdentity(), DistributionFilter{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 10},
		Status:           models.DistributionStatusRejected,
	})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Equal(rejected.ID, list[0].ID)

	_, _, err = suite.service.AdminList(suite.artistIdentity(), DistributionFilter{})
	suite.ErrorIs(err, ErrForbidden)

	_, _, err = suite.service.AdminList(suite.staffIdentity(), DistributionFilter{Status: "shipped"})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *DistributionServiceTestSuite) TestListPlatformsSkipsInactive() {
	inactive := testutil.CreatePlatform(suite.T(), suite.db, "Retired")
	suite.Require().NoError(suite.db.Model(inactive).Update("is_active", false).Error)

	platforms, err := suite.service.ListPlatforms()
	suite.Require().NoError(err)
	suite.Len(platforms, 2)
	suite.Equal("Audiomack", platforms[0].Name)
}

func TestDistributionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DistributionServiceTestSuite))
}
