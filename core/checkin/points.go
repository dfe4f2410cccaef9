package checkin

import "context"

// Credit reasons
const (
	ReasonCheckin = "checkin"
	ReasonBonus   = "perfect-attendance-bonus"
)

// PointsAccount is the external points collaborator. Repeated Credit calls
// with the same idempotency key must have the net effect of a single call;
// the engine depends on that guarantee to make retries safe.
type PointsAccount interface {
	Credit(ctx context.Context, accountID string, amount int, reason, idemKey string) error
}

// CreditKey derives the idempotency key for a credit. The same
// (session, participant, reason) always maps to the same key, so a retried
// credit can never double-pay.
func CreditKey(sessionID, participantID, reason string) string {
	return sessionID + ":" + participantID + ":" + reason
}
