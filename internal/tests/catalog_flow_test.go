package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/testutil"
)

func (suite *DistributionFlowTestSuite) TestDownloadRedirectsAndCounts() {
	artist := testutil.CreateArtist(suite.T(), suite.db, "kondwani")
	track := testutil.CreateTrack(suite.T(), suite.db, artist, "Mphepo")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tracks/"+track.ID.String()+"/download", nil))

	suite.Equal(http.StatusFound, w.Code)
	suite.Equal(track.AudioURL, w.Header().Get("Location"))

	var stored models.Track
	suite.Require().NoError(suite.db.First(&stored, "id = ?", track.ID).Error)
	suite.EqualValues(1, stored.Downloads)
}

func (suite *DistributionFlowTestSuite) TestTrackInOpenRequestCannotBeDeleted() {
	artist := testutil.CreateArtist(suite.T(), suite.db, "thoko")
	track := testutil.CreateTrack(suite.T(), suite.db, artist, "Nyimbo")
	platform := testutil.CreatePlatform(suite.T(), suite.db, "Deezer")
	token := suite.tokenFor(artist)

	code, resp := suite.do(http.MethodPost, "/v1/distribution/requests", token, map[string]interface{}{
		"track_ids":    []string{track.ID.String()},
		"platform_ids": []string{platform.ID.String()},
	})
	suite.Require().Equal(http.StatusCreated, code, string(resp.Error))

	code, resp = suite.do(http.MethodDelete, "/v1/tracks/"+track.ID.String(), token, nil)
	suite.Equal(http.StatusConflict, code)
	suite.Contains(string(resp.Error), "CONFLICT")

	// Someone else's track is forbidden, not a conflict
	other := testutil.CreateArtist(suite.T(), suite.db, "stranger")
	code, _ = suite.do(http.MethodDelete, "/v1/tracks/"+track.ID.String(), suite.tokenFor(other), nil)
	suite.Equal(http.StatusForbidden, code)

	var count int64
	suite.Require().NoError(suite.db.Model(&models.Track{}).Where("id = ?", track.ID).Count(&count).Error)
	suite.EqualValues(1, count)
}

func (suite *DistributionFlowTestSuite) TestCommentOnTrack() {
	artist := testutil.CreateArtist(suite.T(), suite.db, "wezi")
	listener := testutil.CreateUser(suite.T(), suite.db, "fan")
	track := testutil.CreateTrack(suite.T(), suite.db, artist, "Chikondi")
	path := "/v1/tracks/" + track.ID.String() + "/comments"

	code, resp := suite.do(http.MethodPost, path, suite.tokenFor(listener), map[string]string{"text": "Zabwino!"})
	suite.Require().Equal(http.StatusCreated, code, string(resp.Error))
	var created struct {
		Comment models.Comment `json:"comment"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &created))

	code, resp = suite.do(http.MethodGet, path, "", nil)
	suite.Require().Equal(http.StatusOK, code)
	suite.Contains(string(resp.Data), "Zabwino!")

	// The uploader may remove comments on their own track
	code, _ = suite.do(http.MethodDelete, "/v1/comments/"+created.Comment.ID.String(), suite.tokenFor(artist), nil)
	suite.Equal(http.StatusOK, code)
}

func (suite *DistributionFlowTestSuite) TestBlogPublishing() {
	staff := testutil.CreateStaff(suite.T(), suite.db, "editor")
	listener := testutil.CreateUser(suite.T(), suite.db, "reader")
	post := map[string]string{"title": "Distribution is open", "content": "Send your tracks to Spotify."}

	code, _ := suite.do(http.MethodPost, "/v1/admin/blog/posts", suite.tokenFor(listener), post)
	suite.Equal(http.StatusForbidden, code)

	code, resp := suite.do(http.MethodPost, "/v1/admin/blog/posts", suite.tokenFor(staff), post)
	suite.Require().Equal(http.StatusCreated, code, string(resp.Error))
	var created struct {
		Post models.BlogPost `json:"post"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &created))

	code, resp = suite.do(http.MethodGet, "/v1/blog/posts/"+created.Post.Slug, "", nil)
	suite.Require().Equal(http.StatusOK, code)
	suite.Contains(string(resp.Data), `"views":1`)

	code, _ = suite.do(http.MethodGet, "/v1/blog/posts/missing", "", nil)
	suite.Equal(http.StatusNotFound, code)
}
