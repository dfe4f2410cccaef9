package checkin

import (
	"context"

	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core"
)

// BonusEvaluator watches the aggregation stream and fires the one-time
// perfect-attendance bonus. The SetBonusIssued flip is the same
// create-if-absent discipline the ledger uses, keyed by session alone, so
// any number of evaluator instances observing the same update issue the
// bonus exactly once. Issuance is one-way: a view that later reports
// imperfect attendance triggers no corrective action.
type BonusEvaluator struct {
	repo    Repository
	points  PointsAccount
	retrier *CreditRetrier
	conf    *core.Config
	logger  core.Logger
}

func NewBonusEvaluator(repo Repository, points PointsAccount, retrier *CreditRetrier, conf *core.Config, logger core.Logger) *BonusEvaluator {
	return &BonusEvaluator{
		repo:    repo,
		points:  points,
		retrier: retrier,
		conf:    conf,
		logger:  logger,
	}
}

// Evaluate inspects one aggregate update and, if the perfect-attendance
// predicate newly holds, flips the session's bonus flag and credits every
// recorded on-time participant once.
func (ev *BonusEvaluator) Evaluate(ctx context.Context, view AggregateView) error {
	if !view.PerfectAttendance || view.BonusIssued {
		return nil
	}

	flipped, err := ev.repo.SetBonusIssued(ctx, view.SessionID)
	if err != nil {
		return errors.Wrap(err, "flipping bonus flag")
	}
	if !flipped {
		// another evaluator won the flip
		return nil
	}

	recs, err := ev.repo.QueryAttendance(ctx, view.SessionID)
	if err != nil {
		return errors.Wrap(err, "listing bonus recipients")
	}
	for _, rec := range recs {
		if rec.Classification != OnTime {
			continue
		}
		key := CreditKey(rec.SessionID, rec.ParticipantID, ReasonBonus)
		if err := ev.points.Credit(ctx, rec.ParticipantID, ev.conf.Checkin.BonusPoints, ReasonBonus, key); err != nil {
			ev.logger.Error("crediting bonus for "+rec.ParticipantID, err)
			ev.retrier.Enqueue(creditJob{
				AccountID: rec.ParticipantID,
				Amount:    ev.conf.Checkin.BonusPoints,
				Reason:    ReasonBonus,
				IdemKey:   key,
			})
		}
	}
	return nil
}

// Watch subscribes to a session's stream and evaluates every update until
// the feed terminates or the context is cancelled. Meant to be run in its
// own goroutine, one per observing instance.
func (ev *BonusEvaluator) Watch(ctx context.Context, stream *Stream, sessionID string) error {
	feed, cancel, err := stream.Subscribe(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "subscribing bonus evaluator")
	}
	defer cancel()

	for {
		select {
		case view, ok := <-feed:
			if !ok {
				return nil
			}
			if err := ev.Evaluate(ctx, view); err != nil {
				ev.logger.Error("evaluating bonus for session "+sessionID, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
