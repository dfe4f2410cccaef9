package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/techjoejoe/leadergrid/core/points"
)

type creditRepository struct {
	db *creditTable
}

var _ points.Repository = (*creditRepository)(nil) // interface compliance check

func NewCreditRepository(db *DB) *creditRepository {
	return &creditRepository{db: db.credit}
}

func (repo *creditRepository) CreateCreditIfAbsent(ctx context.Context, c points.Credit) (points.Credit, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.db.table[c.IdempotencyKey]; ok {
		return *existing, false, nil
	}
	c.ID = uuid.New().String()
	repo.db.table[c.IdempotencyKey] = &c
	return c, true, nil
}

func (repo *creditRepository) QueryCreditsByAccount(ctx context.Context, accountID string) ([]points.Credit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	credits := make([]points.Credit, 0)
	for _, c := range repo.db.table {
		if c.AccountID == accountID {
			credits = append(credits, *c)
		}
	}
	sort.Slice(credits, func(i, j int) bool { return credits[i].CreatedAt.Before(credits[j].CreatedAt) })
	return credits, nil
}

func (repo *creditRepository) GetBalance(ctx context.Context, accountID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var balance int
	for _, c := range repo.db.table {
		if c.AccountID == accountID {
			balance += c.Amount
		}
	}
	return balance, nil
}
