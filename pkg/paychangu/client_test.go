package paychangu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyasabox/nyasabox-api/pkg/retry"
)

var fastRetry = retry.Policy{Attempts: 3, Delay: time.Millisecond}

// flakyTransport fails the first n round trips at the network level and then
// delegates to next.
type flakyTransport struct {
	failures int32
	calls    int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, errors.New("dial tcp: i/o timeout")
	}
	return f.next.RoundTrip(req)
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveGatewayCall(operation, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, operation+":"+outcome)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, failures int32) (*Client, *flakyTransport) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport := &flakyTransport{failures: failures, next: http.DefaultTransport}
	client := NewClient(server.URL, "sk-test", time.Second,
		WithHTTPClient(&http.Client{Transport: transport, Timeout: time.Second}),
		WithRetryPolicy(fastRetry),
	)
	return client, transport
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestListOperatorsRetriesTransportFailures(t *testing.T) {
	client, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mobile-money", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"data": []map[string]interface{}{
				{"ref_id": "op-airtel", "name": "Airtel Money"},
				{"ref_id": "op-tnm", "name": "TNM Mpamba"},
			},
		})
	}, 2)

	operators, err := client.ListOperators(context.Background())

	require.NoError(t, err)
	assert.Len(t, operators, 2)
	assert.Equal(t, "op-airtel", operators[0].RefID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&transport.calls))
}

func TestListOperatorsDoesNotRetryErrorResponses(t *testing.T) {
	client, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "error", "message": "maintenance"})
	}, 0)

	_, err := client.ListOperators(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "maintenance", apiErr.Message)
	assert.False(t, IsTransient(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&transport.calls))
}

func TestInitializePaymentSucceedsOnThirdAttempt(t *testing.T) {
	var received InitializeRequest
	client, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mobile-money/payments/initialize", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"message": "Payment initiated",
			"data":    map[string]interface{}{"charge_id": received.ChargeID, "status": "pending"},
		})
	}, 2)

	resp, err := client.InitializePayment(context.Background(), InitializeRequest{
		OperatorRefID: "op-airtel",
		Mobile:        "991234567",
		Amount:        "3333",
		ChargeID:      "nyasa-123",
		Email:         "payer@example.com",
		FirstName:     "Chikondi",
		LastName:      "Banda",
	})

	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Payment initiated", resp.Message)
	assert.Equal(t, "nyasa-123", received.ChargeID)
	assert.Equal(t, "op-airtel", received.OperatorRefID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&transport.calls))
}

func TestInitializePaymentExhaustsAttempts(t *testing.T) {
	client, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be reached")
	}, 100)

	_, err := client.InitializePayment(context.Background(), InitializeRequest{ChargeID: "nyasa-1"})

	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, ErrTransport)
	assert.EqualValues(t, 3, atomic.LoadInt32(&transport.calls))
}

func TestInitializePaymentRejection(t *testing.T) {
	client, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"status":  "failed",
			"message": map[string]interface{}{"mobile": []string{"The mobile field is invalid."}},
		})
	}, 0)

	_, err := client.InitializePayment(context.Background(), InitializeRequest{ChargeID: "nyasa-2"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "mobile field is invalid")
	assert.EqualValues(t, 1, atomic.LoadInt32(&transport.calls))
}

func TestInitializePaymentNonSuccessStatusOn200(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "failed", "message": "Insufficient float"})
	}, 0)

	_, err := client.InitializePayment(context.Background(), InitializeRequest{ChargeID: "nyasa-3"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Insufficient float", apiErr.Message)
}

func TestVerifyPaymentSingleAttempt(t *testing.T) {
	client, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be reached")
	}, 1)

	_, err := client.VerifyPayment(context.Background(), "nyasa-4")

	assert.True(t, IsTransient(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&transport.calls))
}

func TestVerifyPaymentParsesData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mobile-money/payments/nyasa-5/verify", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "successful",
			"message": "Payment details retrieved",
			"data":    map[string]interface{}{"status": "success", "message": "Paid"},
		})
	}, 0)

	resp, err := client.VerifyPayment(context.Background(), "nyasa-5")

	require.NoError(t, err)
	assert.Equal(t, "success", resp.Data.Status)
	assert.Equal(t, OutcomeSuccess, resp.Outcome())
	assert.NotNil(t, resp.Raw["data"])
}

func TestVerifyPaymentTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk", time.Minute, WithVerifyTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := client.VerifyPayment(context.Background(), "nyasa-6")

	assert.True(t, IsTransient(err))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestObserverRecordsAttempts(t *testing.T) {
	observer := &recordingObserver{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": []interface{}{}})
	}))
	defer server.Close()

	transport := &flakyTransport{failures: 1, next: http.DefaultTransport}
	client := NewClient(server.URL, "sk", time.Second,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetryPolicy(fastRetry),
		WithObserver(observer),
	)

	_, err := client.ListOperators(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"list_operators:transport_error", "list_operators:ok"}, observer.outcomes)
}

func TestVerifyOutcome(t *testing.T) {
	cases := []struct {
		name     string
		response *VerifyResponse
		want     Outcome
	}{
		{"success", &VerifyResponse{Status: "successful", Data: VerifyData{Status: "success"}}, OutcomeSuccess},
		{"failed", &VerifyResponse{Status: "successful", Data: VerifyData{Status: "failed"}}, OutcomeFailed},
		{"cancelled status", &VerifyResponse{Status: "successful", Data: VerifyData{Status: "cancelled"}}, OutcomeCancelled},
		{"cancel marker", &VerifyResponse{Status: "successful", Data: VerifyData{Status: "failed", Message: "USER_CANCELLED by payer"}}, OutcomeCancelled},
		{"pending", &VerifyResponse{Status: "successful", Data: VerifyData{Status: "pending"}}, OutcomePending},
		{"unknown inner", &VerifyResponse{Status: "successful", Data: VerifyData{Status: "weird"}}, OutcomePending},
		{"outer not successful", &VerifyResponse{Status: "error", Data: VerifyData{Status: "success"}}, OutcomePending},
		{"empty", &VerifyResponse{}, OutcomePending},
		{"nil", nil, OutcomePending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.response.Outcome())
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxLoggedBody+10)
	assert.Len(t, truncate([]byte(long)), maxLoggedBody+3)
	assert.Equal(t, "short", truncate([]byte("short")))
}
