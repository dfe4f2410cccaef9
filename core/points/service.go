package points

import (
	"context"

	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core"
)

type (
	Repository interface {
		// CreateCreditIfAbsent inserts the credit only if no credit exists
		// with its idempotency key. It returns the stored credit and whether
		// this call created it.
		CreateCreditIfAbsent(ctx context.Context, c Credit) (Credit, bool, error)
		QueryCreditsByAccount(ctx context.Context, accountID string) ([]Credit, error)
		GetBalance(ctx context.Context, accountID string) (int, error)
	}

	// Service is the points account collaborator: an idempotent credit
	// ledger. Amounts may be zero; a zero-amount credit is still recorded
	// for auditability.
	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Credit applies an amount to an account at most once per idempotency key.
// A duplicate key acknowledges without a second effect.
func (svc *Service) Credit(ctx context.Context, accountID string, amount int, reason, idemKey string) error {
	c := Credit{
		AccountID:      accountID,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: idemKey,
		CreatedAt:      core.NowFunc(),
	}
	_, created, err := svc.repo.CreateCreditIfAbsent(ctx, c)
	if err != nil {
		return errors.Wrap(err, "writing credit")
	}
	if !created {
		svc.logger.Debug("duplicate credit " + idemKey + " acknowledged")
	}
	return nil
}

func (svc *Service) History(ctx context.Context, accountID string) ([]Credit, error) {
	return svc.repo.QueryCreditsByAccount(ctx, accountID)
}

func (svc *Service) Balance(ctx context.Context, accountID string) (int, error) {
	return svc.repo.GetBalance(ctx, accountID)
}
