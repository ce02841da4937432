package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/config"
	"github.com/nyasabox/nyasabox-api/internal/metrics"
	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/internal/router"
	"github.com/nyasabox/nyasabox-api/internal/testutil"
	"github.com/nyasabox/nyasabox-api/internal/utils"
	"github.com/nyasabox/nyasabox-api/pkg/events"
	"github.com/nyasabox/nyasabox-api/pkg/paychangu"
	"github.com/nyasabox/nyasabox-api/pkg/retry"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// DistributionFlowTestSuite drives the HTTP API against a fake PayChangu server.
type DistributionFlowTestSuite struct {
	suite.Suite
	db        *gorm.DB
	gateway   *httptest.Server
	verifies  atomic.Int32
	settled   atomic.Bool
	publisher *events.RecordingPublisher
	router    *gin.Engine
}

func (suite *DistributionFlowTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("flow-secret")

	suite.db = testutil.NewTestDB(suite.T())
	suite.verifies.Store(0)
	suite.settled.Store(false)
	suite.gateway = httptest.NewServer(http.HandlerFunc(suite.serveGateway))
	suite.T().Cleanup(suite.gateway.Close)

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "flow-secret", AccessTokenTTL: 1, RefreshTokenTTL: 24},
		Payment: config.PaymentConfig{
			Currency:         "MWK",
			CountryCode:      "265",
			OperatorPrefixes: map[string]string{"airtel": "9", "tnm": "8"},
			SweepGracePeriod: time.Minute,
		},
		Distribution: config.DistributionConfig{PricePerTrack: "1666.67"},
		I18n:         config.I18nConfig{DefaultLocale: "en"},
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	suite.publisher = &events.RecordingPublisher{}

	client := paychangu.NewClient(suite.gateway.URL, "sk-test", time.Second,
		paychangu.WithRetryPolicy(retry.Policy{Attempts: 2, Delay: time.Millisecond}),
		paychangu.WithObserver(m),
	)

	svc, err := router.BuildServices(suite.db, cfg, router.Dependencies{
		Gateway:   client,
		Publisher: suite.publisher,
		Metrics:   m,
	})
	suite.Require().NoError(err)
	suite.router = router.Initialize(suite.db, cfg, svc, registry)
}

func (suite *DistributionFlowTestSuite) serveGateway(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer sk-test" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/initialize"):
		w.Write([]byte(`{"status":"success","message":"Check your phone to approve the payment"}`))
	case strings.HasSuffix(r.URL.Path, "/verify"):
		suite.verifies.Add(1)
		status := "pending"
		if suite.settled.Load() {
			status = "success"
		}
		w.Write([]byte(`{"status":"successful","data":{"status":"` + status + `"}}`))
	default:
		w.Write([]byte(`{"status":"success","data":[{"id":1,"ref_id":"airtel-ref","name":"Airtel Money"}]}`))
	}
}

func (suite *DistributionFlowTestSuite) do(method, path, token string, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var resp envelope
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (suite *DistributionFlowTestSuite) tokenFor(user *models.User) string {
	token, err := utils.GenerateJWT(user.ID, user.Username, string(user.UserType), string(user.ArtistStatus), 1)
	suite.Require().NoError(err)
	return token
}

func (suite *DistributionFlowTestSuite) TestHealth() {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "healthy")
}

func (suite *DistributionFlowTestSuite) TestProtectedRoutesRequireToken() {
	code, resp := suite.do(http.MethodGet, "/v1/distribution/requests", "", nil)
	suite.Equal(http.StatusUnauthorized, code)
	suite.False(resp.Success)

	artist := testutil.CreateArtist(suite.T(), suite.db, "artist")
	code, _ = suite.do(http.MethodGet, "/v1/admin/distribution/requests", suite.tokenFor(artist), nil)
	suite.Equal(http.StatusForbidden, code)
}

func (suite *DistributionFlowTestSuite) TestRegisterThenListenerCannotDistribute() {
	code, resp := suite.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "listener",
		"email":    "listener@example.com",
		"password": testutil.DefaultPassword,
	})
	suite.Require().Equal(http.StatusCreated, code)

	var registered struct {
		Token string `json:"token"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &registered))
	suite.Require().NotEmpty(registered.Token)

	code, _ = suite.do(http.MethodGet, "/v1/distribution/eligible-tracks", registered.Token, nil)
	suite.Equal(http.StatusForbidden, code)
}

func (suite *DistributionFlowTestSuite) TestPayAndDistribute() {
	artist := testutil.CreateArtist(suite.T(), suite.db, "chikondi")
	staff := testutil.CreateStaff(suite.T(), suite.db, "staffer")
	track := testutil.CreateTrack(suite.T(), suite.db, artist, "Moto")
	platform := testutil.CreatePlatform(suite.T(), suite.db, "Spotify")
	token := suite.tokenFor(artist)

	// Create
	code, resp := suite.do(http.MethodPost, "/v1/distribution/requests", token, map[string]interface{}{
		"track_ids":    []string{track.ID.String()},
		"platform_ids": []string{platform.ID.String()},
	})
	suite.Require().Equal(http.StatusCreated, code, string(resp.Error))

	var created struct {
		Request models.DistributionRequest `json:"request"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &created))
	suite.Equal(models.DistributionStatusPending, created.Request.Status)
	suite.Equal("1666.67", created.Request.TotalAmount.StringFixed(2))
	requestID := created.Request.ID.String()

	// Operators
	code, resp = suite.do(http.MethodGet, "/v1/payments/operators", token, nil)
	suite.Require().Equal(http.StatusOK, code)
	var operators struct {
		Operators []paychangu.Operator `json:"operators"`
		Degraded  bool                 `json:"degraded"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &operators))
	suite.False(operators.Degraded)
	suite.Len(operators.Operators, 1)

	// A wrong amount is rejected before the gateway is charged
	code, _ = suite.do(http.MethodPost, "/v1/payments/distribution/"+requestID+"/initiate", token, map[string]string{
		"operator_ref_id": "airtel-ref",
		"mobile":          "0991234567",
		"amount":          "1000",
	})
	suite.Equal(http.StatusBadRequest, code)

	// Initiate
	code, resp = suite.do(http.MethodPost, "/v1/payments/distribution/"+requestID+"/initiate", token, map[string]string{
		"operator_ref_id": "airtel-ref",
		"mobile":          "0991234567",
		"amount":          "1666.67",
	})
	suite.Require().Equal(http.StatusCreated, code, string(resp.Error))
	var initiated struct {
		Payment struct {
			ChargeID string `json:"charge_id"`
			Status   string `json:"status"`
		} `json:"payment"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &initiated))
	suite.Equal("pending", initiated.Payment.Status)
	chargeID := initiated.Payment.ChargeID

	// Poll while the payer has not approved yet
	code, resp = suite.do(http.MethodGet, "/v1/payments/"+chargeID+"/status", token, nil)
	suite.Require().Equal(http.StatusOK, code)
	suite.Contains(string(resp.Data), `"status":"pending"`)

	// Poll after approval
	suite.settled.Store(true)
	code, resp = suite.do(http.MethodGet, "/v1/payments/"+chargeID+"/status", token, nil)
	suite.Require().Equal(http.StatusOK, code)
	var polled struct {
		Payment struct {
			Status        string `json:"status"`
			RequestStatus string `json:"request_status"`
		} `json:"payment"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &polled))
	suite.Equal("success", polled.Payment.Status)
	suite.Equal("paid", polled.Payment.RequestStatus)
	suite.Equal(int32(2), suite.verifies.Load())

	// Staff moves it along; going back is refused
	staffToken := suite.tokenFor(staff)
	statusPath := "/v1/admin/distribution/requests/" + requestID + "/status"

	code, _ = suite.do(http.MethodPut, statusPath, staffToken, map[string]string{"status": "processing"})
	suite.Equal(http.StatusOK, code)

	code, resp = suite.do(http.MethodPut, statusPath, staffToken, map[string]string{"status": "pending"})
	suite.Equal(http.StatusConflict, code)
	suite.Contains(string(resp.Error), "INVALID_TRANSITION")

	code, _ = suite.do(http.MethodPut, statusPath, staffToken, map[string]string{"status": "distributed"})
	suite.Equal(http.StatusOK, code)

	// Distributed tracks cannot be sent again
	code, resp = suite.do(http.MethodGet, "/v1/distribution/eligible-tracks", token, nil)
	suite.Require().Equal(http.StatusOK, code)
	var eligible struct {
		Tracks []models.Track `json:"tracks"`
	}
	suite.Require().NoError(json.Unmarshal(resp.Data, &eligible))
	suite.Empty(eligible.Tracks)

	// Another artist cannot see the request
	other := testutil.CreateArtist(suite.T(), suite.db, "other")
	code, _ = suite.do(http.MethodGet, "/v1/distribution/requests/"+requestID, suite.tokenFor(other), nil)
	suite.Equal(http.StatusForbidden, code)

	// Gateway calls are exported
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "nyasabox_payment_gateway_requests_total")
}

func TestDistributionFlowTestSuite(t *testing.T) {
	suite.Run(t, new(DistributionFlowTestSuite))
}
