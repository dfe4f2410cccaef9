package checkin_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/session"
)

func TestRecordOnTime(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)

	rec, err := env.svc.Record(context.Background(), presentation(sess.ID, "P1", deadline.Add(-time.Minute)), token)
	assert.NoError(t, err)
	assert.Equal(t, checkin.OnTime, rec.Classification)
	assert.Equal(t, testPointValue, rec.PointsAwarded)
	assert.Equal(t, testPointValue, env.points.balance(t, "P1"))
}

func TestRecordLateEarnsZero(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)

	rec, err := env.svc.Record(context.Background(), presentation(sess.ID, "P1", deadline), token)
	assert.NoError(t, err)
	assert.Equal(t, checkin.Late, rec.Classification)
	assert.Equal(t, 0, rec.PointsAwarded)
	// a zero-amount credit is still issued for auditability
	assert.Equal(t, 1, env.points.callCount(checkin.CreditKey(sess.ID, "P1", checkin.ReasonCheckin)))
	assert.Equal(t, 0, env.points.balance(t, "P1"))
}

func TestRecordLateEarnsPointsPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.conf.Checkin.LateEarnsPoints = true
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)

	rec, err := env.svc.Record(context.Background(), presentation(sess.ID, "P1", deadline.Add(time.Minute)), token)
	assert.NoError(t, err)
	assert.Equal(t, checkin.Late, rec.Classification)
	assert.Equal(t, testPointValue, rec.PointsAwarded)
}

func TestRecordDuplicateReturnsExisting(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)
	ctx := context.Background()

	first, err := env.svc.Record(ctx, presentation(sess.ID, "P1", deadline.Add(-time.Minute)), token)
	assert.NoError(t, err)

	// a later duplicate, even with a different timestamp, is a no-op
	second, err := env.svc.Record(ctx, presentation(sess.ID, "P1", deadline.Add(-time.Second)), token)
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	view, err := env.svc.Aggregate(ctx, sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, view.TotalPresented)
	assert.Equal(t, testPointValue, env.points.balance(t, "P1"))
	assert.Equal(t, 1, env.points.callCount(checkin.CreditKey(sess.ID, "P1", checkin.ReasonCheckin)))
}

func TestRecordConcurrentDuplicates(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.svc.Record(context.Background(), presentation(sess.ID, "P1", deadline.Add(-time.Minute)), token)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := env.svc.Aggregate(context.Background(), sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, view.TotalPresented, "10 concurrent submissions must yield exactly one record")
	assert.Equal(t, testPointValue, env.points.balance(t, "P1"), "exactly one net credit")
}

func TestRecordClosedSessionRejects(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)
	ctx := context.Background()

	_, err := env.registry.Close(ctx, sess.ID)
	assert.NoError(t, err)

	_, err = env.svc.Record(ctx, presentation(sess.ID, "P1", deadline.Add(-time.Minute)), token)
	assert.Equal(t, checkin.ErrSessionClosed, errors.Cause(err))

	view, err := env.svc.Aggregate(ctx, sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, view.TotalPresented, "no record may be created after closure")
}

func TestRecordSessionMismatch(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	_, token := env.createSession(t, 5, deadline)
	other, _ := env.createSession(t, 5, deadline)

	_, err := env.svc.Record(context.Background(), presentation(other.ID, "P1", deadline.Add(-time.Minute)), token)
	assert.Equal(t, checkin.ErrSessionClosed, errors.Cause(err))
}

func TestRecordCreditFailed(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	sess, token := env.createSession(t, 5, deadline)
	ctx := context.Background()

	key := checkin.CreditKey(sess.ID, "P1", checkin.ReasonCheckin)
	env.points.failNext(key, 1)

	rec, err := env.svc.Record(ctx, presentation(sess.ID, "P1", deadline.Add(-time.Minute)), token)
	credErr, ok := errors.Cause(err).(*checkin.CreditError)
	if !ok {
		t.Fatalf("want *checkin.CreditError, got %v", err)
	}
	assert.Equal(t, rec, credErr.Record)

	// the record stands: attendance is truthful even though the payout failed
	stored, err := env.svc.Get(ctx, sess.ID, "P1")
	assert.NoError(t, err)
	assert.Equal(t, rec, stored)

	// retrying the credit with the same key recovers the payout without
	// re-admitting the participant
	assert.NoError(t, env.points.Credit(ctx, "P1", rec.PointsAwarded, checkin.ReasonCheckin, key))
	assert.Equal(t, testPointValue, env.points.balance(t, "P1"))

	view, err := env.svc.Aggregate(ctx, sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, view.TotalPresented)
}

func TestRecordNotFoundSession(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour)
	_, token := env.createSession(t, 5, deadline)

	ghost := token
	ghost.SessionID = "nope"
	_, err := env.svc.Record(context.Background(), presentation("nope", "P1", deadline.Add(-time.Minute)), ghost)
	assert.Equal(t, session.ErrNotFound, errors.Cause(err))
}
