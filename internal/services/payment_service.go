// internal/services/payment_service.go
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

	"github.com/nyasabox/nyasabox-api/internal/cache"
	"github.com/nyasabox/nyasabox-api/internal/config"
	"github.com/nyasabox/nyasabox-api/internal/database"
	"github.com/nyasabox/nyasabox-api/internal/models"
	"github.com/nyasabox/nyasabox-api/pkg/events"
	"github.com/nyasabox/nyasabox-api/pkg/paychangu"
)

const chargeIDPrefix = "nyasa-"

// PaymentGateway is the subset of the mobile-money API the ledger needs.
type PaymentGateway interface {
	ListOperators(ctx context.Context) ([]paychangu.Operator, error)
	InitializePayment(ctx context.Context, req paychangu.InitializeRequest) (*paychangu.InitializeResponse, error)
	VerifyPayment(ctx context.Context, chargeID string) (*paychangu.VerifyResponse, error)
}

type PaymentService struct {
	db           *gorm.DB
	config       config.PaymentConfig
	gateway      PaymentGateway
	distribution *DistributionService
	operators    *cache.OperatorCache
	mobile       *MobileNormalizer
}

type InitiatePaymentRequest struct {
	OperatorRefID string          `json:"operator_ref_id" validate:"required"`
	Mobile        string          `json:"mobile" validate:"required,mobile_number"`
	Amount        decimal.Decimal `json:"amount"`
}

type InitiatePaymentResponse struct {
	ChargeID  string               `json:"charge_id"`
	RequestID uuid.UUID            `json:"request_id"`
	Status    models.PaymentStatus `json:"status"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
	Mobile    string               `json:"mobile"`
	Operator  string               `json:"operator"`
	Message   string               `json:"message,omitempty"`
}

// PaymentStatusResult is what a poll returns.
type PaymentStatusResult struct {
	ChargeID      string                    `json:"charge_id"`
	RequestID     uuid.UUID                 `json:"request_id"`
	Status        models.PaymentStatus      `json:"status"`
	Message       string                    `json:"message,omitempty"`
	RequestStatus models.DistributionStatus `json:"request_status"`
	CompletedAt   *time.Time                `json:"completed_at,omitempty"`
}

// OperatorList is never an error. Degraded means the gateway could not be reached.
type OperatorList struct {
	Operators []paychangu.Operator `json:"operators"`
	Degraded  bool                 `json:"degraded"`
}

func NewPaymentService(db *gorm.DB, cfg config.PaymentConfig, gateway PaymentGateway, distribution *DistributionService, operators *cache.OperatorCache) *PaymentService {
	return &PaymentService{
		db:           db,
		config:       cfg,
		gateway:      gateway,
		distribution: distribution,
		operators:    operators,
		mobile:       NewMobileNormalizer(cfg.CountryCode, cfg.OperatorPrefixes),
	}
}

// ListOperators returns the live operator list, from cache when possible.
func (s *PaymentService) ListOperators(ctx context.Context) OperatorList {
	if operators, ok := s.operators.Get(ctx); ok {
		return OperatorList{Operators: operators}
	}

	operators, err := s.gateway.ListOperators(ctx)
	if err != nil || len(operators) == 0 {
		s.distribution.metrics.OperatorListDegraded()
		entry := logrus.WithField("operators", len(operators))
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("Mobile money operator list unavailable, payments degraded")
		return OperatorList{Operators: []paychangu.Operator{}, Degraded: true}
	}

	s.operators.Set(ctx, operators)
	return OperatorList{Operators: operators}
}

// InitiatePayment records a pending transaction and asks the gateway to charge
// the payer. The transaction is removed again if the gateway does not accept it.
func (s *PaymentService) InitiatePayment(ctx context.Context, identity Identity, requestID uuid.UUID, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var request models.DistributionRequest
	if err := s.db.Preload("Artist").First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("distribution request %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if request.ArtistID != identity.UserID {
		return nil, fmt.Errorf("%w: not your distribution request", ErrForbidden)
	}
	if request.Status != models.DistributionStatusPending {
		return nil, newValidationError("status", fmt.Sprintf("request is %s and cannot be paid", request.Status))
	}

	payer := request.Artist
	if payer == nil || !payer.HasPayerDetails() {
		return nil, newValidationError("profile", "first name, last name and email are required before paying")
	}
	if !req.Amount.Equal(request.TotalAmount) {
		return nil, newValidationError("amount", "amount must equal the request total of "+request.TotalAmount.StringFixed(2))
	}

	mobile, err := s.mobile.Normalize(req.Mobile)
	if err != nil {
		return nil, err
	}

	operatorRef := strings.TrimSpace(req.OperatorRefID)
	if operatorRef == "" {
		return nil, newValidationError("operator_ref_id", "select a mobile money operator")
	}

	list := s.ListOperators(ctx)
	if list.Degraded {
		return nil, fmt.Errorf("%w: mobile money operators could not be loaded", ErrGatewayUnavailable)
	}
	operator, ok := findOperator(list.Operators, operatorRef)
	if !ok {
		return nil, newValidationError("operator_ref_id", "unknown mobile money operator")
	}
	if err := s.mobile.CheckOperator(mobile, operator.Name); err != nil {
		return nil, err
	}

	email := s.config.PaymentEmail
	if email == "" {
		email = payer.Email
	}

	txn := &models.PaymentTransaction{
		ChargeID:              chargeIDPrefix + uuid.NewString(),
		DistributionRequestID: request.ID,
		Currency:              s.config.Currency,
		Mobile:                mobile,
		OperatorRefID:         operator.RefID,
		OperatorName:          operator.Name,
		Status:                models.PaymentStatusPending,
		UserEmail:             email,
		InitiatedAt:           time.Now().UTC(),
	}
	if err := s.createTransaction(txn, identity.UserID, req.Amount); err != nil {
		return nil, err
	}

	// The gateway may already hold the charge when the caller goes away, so the
	// call runs on its own deadline.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initiateBudget())
	defer cancel()

	resp, err := s.gateway.InitializePayment(callCtx, paychangu.InitializeRequest{
		OperatorRefID: operator.RefID,
		Mobile:        mobile,
		Amount:        txn.Amount.Truncate(0).String(),
		ChargeID:      txn.ChargeID,
		Email:         email,
		FirstName:     payer.FirstName,
		LastName:      payer.LastName,
	})
	if err != nil {
		s.discard(txn)
		return nil, s.initiationError(txn, err)
	}

	if err := s.db.Model(txn).Update("response_data", models.JSONB(resp.Raw)).Error; err != nil {
		logrus.WithError(err).WithField("charge_id", txn.ChargeID).Error("Failed to store gateway initialization response")
	}

	logrus.WithFields(logrus.Fields{
		"charge_id":  txn.ChargeID,
		"request_id": request.ID,
		"operator":   operator.Name,
		"amount":     txn.Amount.StringFixed(2),
	}).Info("Payment initiated")

	return &InitiatePaymentResponse{
		ChargeID:  txn.ChargeID,
		RequestID: request.ID,
		Status:    txn.Status,
		Amount:    txn.Amount,
		Currency:  txn.Currency,
		Mobile:    txn.Mobile,
		Operator:  operator.Name,
		Message:   resp.Message,
	}, nil
}

// createTransaction inserts the pending ledger row. The request is re-read in
// the same transaction so the amount is the total at creation time.
func (s *PaymentService) createTransaction(txn *models.PaymentTransaction, artistID uuid.UUID, amount decimal.Decimal) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var current models.DistributionRequest
		if err := lockForUpdate(tx).First(&current, "id = ?", txn.DistributionRequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("distribution request %w", ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}
		if current.ArtistID != artistID {
			return fmt.Errorf("%w: not your distribution request", ErrForbidden)
		}
		if current.Status != models.DistributionStatusPending {
			return newValidationError("status", fmt.Sprintf("request is %s and cannot be paid", current.Status))
		}
		if !amount.Equal(current.TotalAmount) {
			return newValidationError("amount", "amount must equal the request total of "+current.TotalAmount.StringFixed(2))
		}

		txn.Amount = current.TotalAmount
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create payment transaction: %w", err)
		}
		return nil
	})
}

// initiateBudget bounds one initialize call including its retries.
func (s *PaymentService) initiateBudget() time.Duration {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := s.config.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return time.Duration(attempts)*timeout + time.Duration(attempts-1)*s.config.RetryDelay + 5*time.Second
}

// discard removes a transaction the gateway never accepted.
func (s *PaymentService) discard(txn *models.PaymentTransaction) {
	if err := s.db.Unscoped().Delete(&models.PaymentTransaction{}, "id = ?", txn.ID).Error; err != nil {
		logrus.WithError(err).WithField("charge_id", txn.ChargeID).Error("Failed to delete rejected payment transaction")
	}
}

func (s *PaymentService) initiationError(txn *models.PaymentTransaction, err error) error {
	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"charge_id":  txn.ChargeID,
		"request_id": txn.DistributionRequestID,
	})

	var apiErr *paychangu.APIError
	if errors.As(err, &apiErr) {
		entry.WithFields(logrus.Fields{
			"status": apiErr.StatusCode,
			"body":   apiErr.Body,
		}).Warn("Payment gateway rejected initialization")
		return &GatewayRejectionError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}

	entry.Error("Payment gateway unreachable during initialization")
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// VerifyPayment is the idempotent poll. Terminal transactions are answered
// from the ledger; pending ones get one verification call.
func (s *PaymentService) VerifyPayment(ctx context.Context, identity Identity, chargeID string) (*PaymentStatusResult, error) {
	if err := RequireCapability(identity, CapabilityAuthenticated); err != nil {
		return nil, err
	}

	txn, err := s.loadTransaction(chargeID)
	if err != nil {
		return nil, err
	}
	if txn.DistributionRequest.ArtistID != identity.UserID && !identity.IsStaff {
		return nil, fmt.Errorf("%w: not your payment", ErrForbidden)
	}

	if txn.Status.Terminal() {
		return statusResult(txn), nil
	}
	return s.reconcile(ctx, txn)
}

// ListTransactions returns every payment attempt of a request, newest first.
func (s *PaymentService) ListTransactions(identity Identity, requestID uuid.UUID) ([]models.PaymentTransaction, error) {
	request, err := s.distribution.Get(identity, requestID)
	if err != nil {
		return nil, err
	}

	var txns []models.PaymentTransaction
	if err := s.db.Where("distribution_request_id = ?", request.ID).
		Order("initiated_at DESC").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// SweepPending verifies transactions that have been pending longer than the
// grace period. It returns how many reached a terminal state.
func (s *PaymentService) SweepPending(ctx context.Context, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-s.config.SweepGracePeriod)

	var txns []models.PaymentTransaction
	if err := s.db.Preload("DistributionRequest").
		Where("status = ? AND initiated_at < ?", models.PaymentStatusPending, cutoff).
		Order("initiated_at ASC").Limit(limit).
		Find(&txns).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending transactions: %w", err)
	}

	resolved := 0
	for i := range txns {
		if ctx.Err() != nil {
			break
		}
		result, err := s.reconcile(ctx, &txns[i])
		if err != nil {
			logrus.WithError(err).WithField("charge_id", txns[i].ChargeID).Warn("Sweep failed to reconcile payment")
			continue
		}
		if result.Status.Terminal() {
			resolved++
		}
	}

	if len(txns) > 0 {
		logrus.WithFields(logrus.Fields{"checked": len(txns), "resolved": resolved}).Info("Pending payment sweep finished")
	}
	return resolved, ctx.Err()
}

func (s *PaymentService) loadTransaction(chargeID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := s.db.Preload("DistributionRequest").First(&txn, "charge_id = ?", chargeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &txn, nil
}

// reconcile asks the gateway once and applies a terminal outcome. Gateway
// errors and unrecognized payloads leave the transaction pending.
func (s *PaymentService) reconcile(ctx context.Context, txn *models.PaymentTransaction) (*PaymentStatusResult, error) {
	resp, err := s.gateway.VerifyPayment(ctx, txn.ChargeID)
	if err != nil {
		entry := logrus.WithError(err).WithField("charge_id", txn.ChargeID)
		var apiErr *paychangu.APIError
		if errors.As(err, &apiErr) {
			entry = entry.WithFields(logrus.Fields{"status": apiErr.StatusCode, "body": apiErr.Body})
		}
		entry.Warn("Payment verification failed, keeping transaction pending")
		return statusResult(txn), nil
	}

	outcome := resp.Outcome()
	if outcome == paychangu.OutcomePending {
		result := statusResult(txn)
		result.Message = firstNonEmpty(resp.Data.Message, resp.Message)
		return result, nil
	}

	status := models.PaymentStatus(outcome)
	completedAt := time.Now().UTC()

	var won, requestPaid bool
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", txn.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":        status,
				"completed_at":  completedAt,
				"response_data": models.JSONB(resp.Raw),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to record payment outcome: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true

		if status != models.PaymentStatusSuccess {
			return nil
		}

		var err error
		requestPaid, err = markRequestPaid(tx, txn.DistributionRequestID, txn.ChargeID, completedAt)
		if err != nil {
			return err
		}
		if !requestPaid {
			return flagLatePayment(tx, txn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fresh, err := s.loadTransaction(txn.ChargeID)
	if err != nil {
		return nil, err
	}
	if !won {
		return statusResult(fresh), nil
	}

	logrus.WithFields(logrus.Fields{
		"charge_id":    fresh.ChargeID,
		"request_id":   fresh.DistributionRequestID,
		"status":       fresh.Status,
		"request_paid": requestPaid,
	}).Info("Payment reconciled")

	s.distribution.metrics.PaymentOutcome(string(status))
	s.publishOutcome(ctx, fresh)

	var request models.DistributionRequest
	if err := s.db.Preload("Artist").Preload("Tracks").First(&request, "id = ?", fresh.DistributionRequestID).Error; err != nil {
		logrus.WithError(err).WithField("charge_id", fresh.ChargeID).Error("Failed to load request after reconciliation")
		return statusResult(fresh), nil
	}
	if requestPaid {
		s.distribution.afterTransition(ctx, &request, models.DistributionStatusPending)
	}
	s.notifyOutcome(ctx, fresh, &request)

	return statusResult(fresh), nil
}

// flagLatePayment handles money arriving for a request that already left
// pending, which needs a human to refund or reinstate it.
func flagLatePayment(tx *gorm.DB, txn *models.PaymentTransaction) error {
	logrus.WithFields(logrus.Fields{
		"charge_id":  txn.ChargeID,
		"request_id": txn.DistributionRequestID,
	}).Warn("Successful payment for a request that is no longer pending")

	requestID := txn.DistributionRequestID
	notification := &models.AdminNotification{
		Type:                "payment_reconciliation",
		Title:               "Payment received for closed request",
		Message:             fmt.Sprintf("Charge %s succeeded but request %s was no longer pending.", txn.ChargeID, requestID),
		Priority:            "high",
		RelatedResourceType: "distribution_request",
		RelatedResourceID:   &requestID,
	}
	if err := tx.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create reconciliation notification: %w", err)
	}
	return nil
}

func (s *PaymentService) notifyOutcome(ctx context.Context, txn *models.PaymentTransaction, request *models.DistributionRequest) {
	if s.distribution.notifier == nil || request.Artist == nil {
		return
	}

	data := map[string]interface{}{
		"Success":    txn.Status == models.PaymentStatusSuccess,
		"Status":     string(txn.Status),
		"RequestID":  request.ID.String(),
		"ArtistName": request.Artist.FullName(),
		"Amount":     txn.Amount.StringFixed(2),
		"Currency":   txn.Currency,
		"ChargeID":   txn.ChargeID,
		"Message":    txn.GatewayMessage(),
	}
	if err := s.distribution.notifier.Send(ctx, TemplateDistributionPayment, request.Artist.Email, data); err != nil {
		logrus.WithError(err).WithField("charge_id", txn.ChargeID).Warn("Failed to send payment notification")
	}
}

func (s *PaymentService) publishOutcome(ctx context.Context, txn *models.PaymentTransaction) {
	event := events.PaymentEvent{
		ChargeID:   txn.ChargeID,
		RequestID:  txn.DistributionRequestID,
		Status:     string(txn.Status),
		Amount:     txn.Amount.StringFixed(2),
		Currency:   txn.Currency,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.distribution.publisher.Publish(ctx, events.RoutingPaymentCompleted, event); err != nil {
		logrus.WithError(err).WithField("charge_id", txn.ChargeID).Warn("Failed to publish payment event")
	}
}

func statusResult(txn *models.PaymentTransaction) *PaymentStatusResult {
	result := &PaymentStatusResult{
		ChargeID:    txn.ChargeID,
		RequestID:   txn.DistributionRequestID,
		Status:      txn.Status,
		Message:     txn.GatewayMessage(),
		CompletedAt: txn.CompletedAt,
	}
	if txn.DistributionRequest != nil {
		result.RequestStatus = txn.DistributionRequest.Status
	}
	return result
}

func findOperator(operators []paychangu.Operator, refID string) (paychangu.Operator, bool) {
	for _, op := range operators {
		if op.RefID == refID {
			return op, true
		}
	}
	return paychangu.Operator{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
