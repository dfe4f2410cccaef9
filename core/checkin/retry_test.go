package checkin

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/techjoejoe/leadergrid/core"
)

// flakyAccount fails the first failures calls then succeeds, recording every
// idempotency key it was asked to credit.
type flakyAccount struct {
	mu       sync.Mutex
	failures int
	calls    []string
	credited map[string]int
}

func newFlakyAccount(failures int) *flakyAccount {
	return &flakyAccount{failures: failures, credited: make(map[string]int)}
}

func (a *flakyAccount) Credit(ctx context.Context, accountID string, amount int, reason, idemKey string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, idemKey)
	if a.failures > 0 {
		a.failures--
		return context.DeadlineExceeded
	}
	if _, ok := a.credited[idemKey]; !ok {
		a.credited[idemKey] = amount
	}
	return nil
}

func (a *flakyAccount) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *flakyAccount) creditedAmount(idemKey string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	amount, ok := a.credited[idemKey]
	return amount, ok
}

func retryConf(maxRetries int) *core.Config {
	return &core.Config{
		OpsEmail: "ops@example.com",
		Checkin: core.CheckinConfig{
			CreditMaxRetries: maxRetries,
			CreditRetryDelay: time.Millisecond,
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRetrierRecovers(t *testing.T) {
	account := newFlakyAccount(1)
	logger := core.NewConsoleLogger(log.New(ioutil.Discard, "", 0))
	retrier := NewCreditRetrier(account, retryConf(3), logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	retrier.Start(ctx)
	defer retrier.Stop()

	retrier.Enqueue(creditJob{AccountID: "P1", Amount: 10, Reason: ReasonCheckin, IdemKey: "k1"})

	waitFor(t, func() bool {
		_, ok := account.creditedAmount("k1")
		return ok
	})
	amount, _ := account.creditedAmount("k1")
	assert.Equal(t, 10, amount)
	assert.Equal(t, 2, account.callCount())
}

func TestRetrierExhaustionReconciles(t *testing.T) {
	account := newFlakyAccount(10) // never recovers within the budget
	logger := core.NewConsoleLogger(log.New(ioutil.Discard, "", 0))
	mailSvc := &captureMail{}
	retrier := NewCreditRetrier(account, retryConf(2), logger, mailSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	retrier.Start(ctx)
	defer retrier.Stop()

	retrier.Enqueue(creditJob{AccountID: "P1", Amount: 10, Reason: ReasonCheckin, IdemKey: "k1"})

	waitFor(t, func() bool { return mailSvc.count() == 1 })
	assert.Equal(t, 2, account.callCount())
	_, credited := account.creditedAmount("k1")
	assert.False(t, credited)
}

type captureMail struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *captureMail) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func (m *captureMail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
