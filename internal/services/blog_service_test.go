package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/testutil"
	"github.com/nyasabox/nyasabox-api/internal/utils"
)

type BlogServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *BlogService
	staff   *models.User
}

func (suite *BlogServiceTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	suite.service = NewBlogService(suite.db)
	suite.staff = testutil.CreateStaff(suite.T(), suite.db, "editor")
}

func (suite *BlogServiceTestSuite) staffIdentity() Identity {
	return IdentityFromUser(suite.staff)
}

func (suite *BlogServiceTestSuite) TestOnlyStaffPublish() {
	artist := testutil.CreateArtist(suite.T(), suite.db, "artist")

	_, err := suite.service.CreatePost(IdentityFromUser(artist), &CreateBlogPostRequest{Title: "Hi", Content: "..."})
	suite.ErrorIs(err, ErrForbidden)
	_, err = suite.service.CreateCategory(IdentityFromUser(artist), &CreateBlogCategoryRequest{Name: "News"})
	suite.ErrorIs(err, ErrForbidden)
}

func (suite *BlogServiceTestSuite) TestPublishListAndRead() {
	news, err := suite.service.CreateCategory(suite.staffIdentity(), &CreateBlogCategoryRequest{Name: "Industry News"})
	suite.Require().NoError(err)
	suite.Equal("industry-news", news.Slug)

	_, err = suite.service.CreateCategory(suite.staffIdentity(), &CreateBlogCategoryRequest{Name: "industry news"})
	suite.ErrorIs(err, ErrValidation)

	post, err := suite.service.CreatePost(suite.staffIdentity(), &CreateBlogPostRequest{
		Title:      "Boomplay payouts explained",
		CategoryID: &news.ID,
		Content:    "How royalties reach Malawian artists.",
	})
	suite.Require().NoError(err)
	suite.Regexp(`^boomplay-payouts-explained-[0-9a-f]{8}$`, post.Slug)

	_, err = suite.service.CreatePost(suite.staffIdentity(), &CreateBlogPostRequest{Title: "Untagged", Content: "General"})
	suite.Require().NoError(err)

	posts, total, err := suite.service.ListPosts(BlogFilter{PaginationParams: utils.PaginationParams{Page: 1, Limit: 10}, CategorySlug: "industry-news"})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Require().Len(posts, 1)
	suite.Equal("Industry News", posts[0].Category.Name)

	_, total, err = suite.service.ListPosts(BlogFilter{PaginationParams: utils.PaginationParams{Search: "ROYALTIES"}})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)

	read, err := suite.service.GetPost(post.Slug)
	suite.Require().NoError(err)
	suite.EqualValues(1, read.Views)
	read, err = suite.service.GetPost(post.Slug)
	suite.Require().NoError(err)
	suite.EqualValues(2, read.Views)

	_, err = suite.service.GetPost("missing")
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *BlogServiceTestSuite) TestUpdateAndDeletePost() {
	post, err := suite.service.CreatePost(suite.staffIdentity(), &CreateBlogPostRequest{Title: "Draft", Content: "v1"})
	suite.Require().NoError(err)

	content := "v2"
	updated, err := suite.service.UpdatePost(suite.staffIdentity(), post.ID, &UpdateBlogPostRequest{Content: &content})
	suite.Require().NoError(err)
	suite.Equal("v2", updated.Content)
	suite.Equal("Draft", updated.Title)

	unknown := suite.staff.ID
	_, err = suite.service.UpdatePost(suite.staffIdentity(), post.ID, &UpdateBlogPostRequest{CategoryID: &unknown})
	suite.ErrorIs(err, ErrValidation)

	suite.Require().NoError(suite.service.DeletePost(suite.staffIdentity(), post.ID))
	_, err = suite.service.GetPost(post.Slug)
	suite.ErrorIs(err, ErrNotFound)
}

func TestBlogServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BlogServiceTestSuite))
}
