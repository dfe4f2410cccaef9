package points

import "time"

// Credit is one idempotent ledger entry on a points account. The
// IdempotencyKey is unique: a repeated credit with the same key leaves the
// ledger, and therefore the balance, unchanged.
type Credit struct {
	ID             string    `json:"id" db:"id"`
	AccountID      string    `json:"account_id" db:"account_id"`
	Amount         int       `json:"amount" db:"amount"`
	Reason         string    `json:"reason" db:"reason"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
}
