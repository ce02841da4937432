package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/testutil"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type CommentServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *CommentService
	artist  *models.User
	fan     *models.User
	track   *models.Track
}

func (suite *CommentServiceTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	suite.service = NewCommentService(suite.db)
	suite.artist = testutil.CreateArtist(suite.T(), suite.db, "lulu")
	suite.fan = testutil.CreateUser(suite.T(), suite.db, "fan")
	suite.track = testutil.CreateTrack(suite.T(), suite.db, suite.artist, "Mphepo")
}

func (suite *CommentServiceTestSuite) TestAddAndList() {
	first, err := suite.service.Add(IdentityFromUser(suite.fan), TrackTarget(suite.track.ID), &CreateCommentRequest{Text: "  Great song  "})
	suite.Require().NoError(err)
	suite.Equal("Great song", first.Text)
	suite.Require().NotNil(first.User)
	suite.Equal("fan", first.User.Username)

	_, err = suite.service.Add(IdentityFromUser(suite.artist), TrackTarget(suite.track.ID), &CreateCommentRequest{Text: "Thank you"})
	suite.Require().NoError(err)

	comments, total, err := suite.service.List(TrackTarget(suite.track.ID), utils.PaginationParams{Page: 1, Limit: 10})
	suite.Require().NoError(err)
	suite.EqualValues(2, total)
	suite.Len(comments, 2)

	_, err = suite.service.Add(IdentityFromUser(suite.fan), TrackTarget(suite.track.ID), &CreateCommentRequest{Text: "   "})
	suite.ErrorIs(err, ErrValidation)

	_, err = suite.service.Add(IdentityFromUser(suite.fan), AlbumTarget(suite.track.ID), &CreateCommentRequest{Text: "Lost"})
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *CommentServiceTestSuite) TestDeletePermissions() {
	comment, err := suite.service.Add(IdentityFromUser(suite.fan), TrackTarget(suite.track.ID), &CreateCommentRequest{Text: "First!"})
	suite.Require().NoError(err)

	stranger := testutil.CreateUser(suite.T(), suite.db, "stranger")
	suite.ErrorIs(suite.service.Delete(IdentityFromUser(stranger), comment.ID), ErrForbidden)

	// the uploader of the commented track may moderate it
	suite.Require().NoError(suite.service.Delete(IdentityFromUser(suite.artist), comment.ID))
	suite.ErrorIs(suite.service.Delete(IdentityFromUser(suite.fan), comment.ID), ErrNotFound)

	own, err := suite.service.Add(IdentityFromUser(suite.fan), TrackTarget(suite.track.ID), &CreateCommentRequest{Text: "Again"})
	suite.Require().NoError(err)
	suite.NoError(suite.service.Delete(IdentityFromUser(suite.fan), own.ID))
}

func (suite *CommentServiceTestSuite) TestAlbumComments() {
	album := &models.Album{Title: "Moyo", Slug: "moyo", Artist: "Lulu", Genre: models.GenreGospel, UploaderID: suite.artist.ID}
	suite.Require().NoError(suite.db.Create(album).Error)

	comment, err := suite.service.Add(IdentityFromUser(suite.fan), AlbumTarget(album.ID), &CreateCommentRequest{Text: "Beautiful"})
	suite.Require().NoError(err)
	suite.Equal(album.ID, *comment.AlbumID)
	suite.Nil(comment.TrackID)

	staff := testutil.CreateStaff(suite.T(), suite.db, "moderator")
	suite.NoError(suite.service.Delete(IdentityFromUser(staff), comment.ID))
}

func TestCommentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CommentServiceTestSuite))
}
