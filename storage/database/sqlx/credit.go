package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/techjoejoe/leadergrid/core/points"
)

type creditRepository struct {
	db *sqlx.DB
}

var _ points.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(db *sqlx.DB) *creditRepository {
	return &creditRepository{db: db}
}

// CreateCreditIfAbsent relies on the unique idempotency_key index: a repeated
// credit affects zero rows and the original entry is returned.
func (repo creditRepository) CreateCreditIfAbsent(ctx context.Context, c points.Credit) (points.Credit, bool, error) {
	c.ID = uuid.New().String()
	res, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO point_credit (id, account_id, amount, reason, idempotency_key, created_at)
		VALUES (:id, :account_id, :amount, :reason, :idempotency_key, :created_at)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		c,
	)
	if err != nil {
		return points.Credit{}, false, trapWriteErr(err, "inserting credit")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return points.Credit{}, false, trapWriteErr(err, "checking credit insert")
	}
	if n == 1 {
		return c, true, nil
	}

	var existing points.Credit
	err = repo.db.GetContext(ctx, &existing, `SELECT * FROM point_credit WHERE idempotency_key = $1`, c.IdempotencyKey)
	if err != nil {
		return points.Credit{}, false, trapNoRowsErr(err, "getting existing credit")
	}
	return existing, false, nil
}

func (repo creditRepository) QueryCreditsByAccount(ctx context.Context, accountID string) ([]points.Credit, error) {
	credits := make([]points.Credit, 0)
	err := repo.db.SelectContext(ctx, &credits, `
		SELECT * FROM point_credit WHERE account_id = $1 ORDER BY created_at`,
		accountID,
	)
	if err != nil {
		return nil, trapNoRowsErr(err, "querying credits")
	}
	return credits, nil
}

func (repo creditRepository) GetBalance(ctx context.Context, accountID string) (int, error) {
	var balance int
	err := repo.db.GetContext(ctx, &balance, `
		SELECT COALESCE(SUM(amount), 0) FROM point_credit WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return 0, trapNoRowsErr(err, "computing balance")
	}
	return balance, nil
}
