// Package paychangu is a client for the PayChangu mobile-money API.
//
// Listing operators and initializing payments are retried on transport
// failures only. Verification is a single bounded attempt.
package paychangu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyasabox/nyasabox-api/pkg/retry"
)

const (
	operatorsPath  = "/mobile-money"
	initializePath = "/mobile-money/payments/initialize"
	verifyPathFmt  = "/mobile-money/payments/%s/verify"

	// maxLoggedBody caps how much of a response body ends up in the logs.
	maxLoggedBody = 2048
)

// Observer receives one sample per HTTP attempt.
type Observer interface {
	ObserveGatewayCall(operation, outcome string, duration time.Duration)
}

// Client talks to the gateway. It is safe for concurrent use.
type Client struct {
	baseURL       string
	secretKey     string
	httpClient    *http.Client
	verifyTimeout time.Duration
	policy        retry.Policy
	observer      Observer
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(c *Client) { c.verifyTimeout = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient builds a client. timeout bounds every single HTTP attempt.
func NewClient(baseURL, secretKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		secretKey:     secretKey,
		httpClient:    &http.Client{Timeout: timeout},
		verifyTimeout: 10 * time.Second,
		policy:        retry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Operator is a mobile-money network the gateway can charge.
type Operator struct {
	ID        int    `json:"id,omitempty"`
	RefID     string `json:"ref_id"`
	Name      string `json:"name"`
	ShortCode string `json:"short_code,omitempty"`
	Logo      string `json:"logo,omitempty"`
}

type operatorsEnvelope struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    []Operator `json:"data"`
}

// ListOperators returns the operators currently supported by the gateway.
func (c *Client) ListOperators(ctx context.Context) ([]Operator, error) {
	var operators []Operator

	err := retry.Do(ctx, c.policy, IsTransient, func(ctx context.Context, attempt int) error {
		status, body, err := c.do(ctx, "list_operators", http.MethodGet, operatorsPath, nil)
		if err != nil {
			logrus.WithError(err).WithField("attempt", attempt).Warn("Operator list request failed")
			return err
		}
		if status != http.StatusOK {
			return newAPIError(status, body)
		}

		var env operatorsEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return &APIError{StatusCode: status, Message: "malformed operator list", Body: truncate(body)}
		}
		operators = env.Data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return operators, nil
}

// InitializeRequest is the body of a charge initialization.
type InitializeRequest struct {
	OperatorRefID string `json:"mobile_money_operator_ref_id"`
	Mobile        string `json:"mobile"`
	Amount        string `json:"amount"`
	ChargeID      string `json:"charge_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
}

type InitializeResponse struct {
	Status  string
	Message string
	Raw     map[string]interface{}
}

// InitializePayment asks the gateway to push a charge prompt to the payer's phone.
// A response that is not a 200 with status "success" is returned as *APIError.
func (c *Client) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	var out *InitializeResponse
	err = retry.Do(ctx, c.policy, IsTransient, func(ctx context.Context, attempt int) error {
		status, body, err := c.do(ctx, "initialize", http.MethodPost, initializePath, payload)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"charge_id": req.ChargeID,
				"attempt":   attempt,
			}).Warn("Payment initialization request failed")
			return err
		}

		raw := map[string]interface{}{}
		if jsonErr := json.Unmarshal(body, &raw); jsonErr != nil {
			return &APIError{StatusCode: status, Message: "malformed initialize response", Body: truncate(body)}
		}

		resp := &InitializeResponse{
			Status:  stringField(raw, "status"),
			Message: messageField(raw),
			Raw:     raw,
		}
		if status != http.StatusOK || resp.Status != "success" {
			return &APIError{StatusCode: status, Status: resp.Status, Message: resp.Message, Body: truncate(body)}
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// VerifyResponse is the gateway's view of a charge.
type VerifyResponse struct {
	Status  string
	Message string
	Data    VerifyData
	Raw     map[string]interface{}
}

type VerifyData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VerifyPayment fetches the state of a charge. It is never retried.
func (c *Client) VerifyPayment(ctx context.Context, chargeID string) (*VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	status, body, err := c.do(ctx, "verify", http.MethodGet, fmt.Sprintf(verifyPathFmt, chargeID), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, newAPIError(status, body)
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &APIError{StatusCode: status, Message: "malformed verify response", Body: truncate(body)}
	}

	resp := &VerifyResponse{
		Status:  stringField(raw, "status"),
		Message: messageField(raw),
		Raw:     raw,
	}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		resp.Data.Status = stringField(data, "status")
		resp.Data.Message = messageField(data)
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, "transport_error", start)
		return 0, nil, &TransportError{Op: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(operation, "transport_error", start)
		return resp.StatusCode, nil, &TransportError{Op: operation, Err: err}
	}

	c.observe(operation, outcomeLabel(resp.StatusCode), start)

	if resp.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
			"body":      truncate(body),
		}).Warn("Payment gateway returned non-200 response")
	}

	return resp.StatusCode, body, nil
}

func (c *Client) observe(operation, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGatewayCall(operation, outcome, time.Since(start))
	}
}

func outcomeLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "ok"
	}
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: truncate(body)}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(body, &raw); err == nil {
		apiErr.Status = stringField(raw, "status")
		apiErr.Message = messageField(raw)
	}
	return apiErr
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// messageField flattens "message", which the gateway sends either as a
// string or as a map of field errors.
func messageField(m map[string]interface{}) string {
	switch v := m["message"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}

// ErrTransport matches every TransportError.
var ErrTransport = errors.New("paychangu: transport failure")

// TransportError is a network-level failure: the request never produced a
// readable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("paychangu %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// APIError is a well-formed response the gateway used to refuse a request.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("paychangu: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("paychangu: HTTP %d", e.StatusCode)
}

// IsTransient is the retry classifier: only transport failures qualify.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}
