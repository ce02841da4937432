package paychangu

import "strings"

// Outcome is the normalized state of a charge as reported by verification.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

const cancellationMarker = "user_cancelled"

// Outcome interprets the response. Anything unrecognized is pending.
// A cancellation marker in the message wins over a plain "failed" status.
func (r *VerifyResponse) Outcome() Outcome {
	if r == nil {
		return OutcomePending
	}

	switch strings.ToLower(r.Status) {
	case "successful", "success":
	default:
		return OutcomePending
	}

	status := strings.ToLower(r.Data.Status)
	message := strings.ToLower(r.Data.Message + " " + r.Message)

	switch {
	case status == "success" || status == "successful":
		return OutcomeSuccess
	case status == "cancelled" || status == "canceled" || strings.Contains(message, cancellationMarker):
		return OutcomeCancelled
	case status == "failed":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
