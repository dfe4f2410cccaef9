package checkin

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/techjoejoe/leadergrid/core"
)

type creditJob struct {
	AccountID string
	Amount    int
	Reason    string
	IdemKey   string
	attempts  int
}

// CreditRetrier retries failed credits against the points account only,
// reusing the original idempotency key so repeated retries cannot double-pay.
// Exhausted jobs become operator reconciliation items (logged and mailed),
// never silently dropped. It never re-runs record creation.
type CreditRetrier struct {
	points PointsAccount
	conf   *core.Config
	logger core.Logger
	mail   core.EmailService

	queue chan creditJob
	done  chan struct{}
}

func NewCreditRetrier(points PointsAccount, conf *core.Config, logger core.Logger, mailSvc core.EmailService) *CreditRetrier {
	return &CreditRetrier{
		points: points,
		conf:   conf,
		logger: logger,
		mail:   mailSvc,
		queue:  make(chan creditJob, 256),
		done:   make(chan struct{}),
	}
}

// Enqueue schedules a failed credit for retry. Non-blocking: when the queue
// is full the job goes straight to reconciliation.
func (r *CreditRetrier) Enqueue(job creditJob) {
	select {
	case r.queue <- job:
	default:
		r.logger.Error("credit retry queue full; escalating " + job.IdemKey)
		r.reconcile(job, fmt.Errorf("retry queue full"))
	}
}

// Start runs the retry loop until Stop is called.
func (r *CreditRetrier) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *CreditRetrier) Stop() { close(r.done) }

func (r *CreditRetrier) run(ctx context.Context) {
	for {
		select {
		case job := <-r.queue:
			r.attempt(ctx, job)
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *CreditRetrier) attempt(ctx context.Context, job creditJob) {
	job.attempts++
	if err := r.points.Credit(ctx, job.AccountID, job.Amount, job.Reason, job.IdemKey); err != nil {
		if job.attempts >= r.conf.Checkin.CreditMaxRetries {
			r.reconcile(job, err)
			return
		}
		// linear backoff before requeueing
		select {
		case <-time.After(time.Duration(job.attempts) * r.conf.Checkin.CreditRetryDelay):
		case <-r.done:
			r.reconcile(job, err)
			return
		case <-ctx.Done():
			r.reconcile(job, err)
			return
		}
		r.Enqueue(job)
		return
	}
	r.logger.Info(fmt.Sprintf("credit %s recovered after %d attempt(s)", job.IdemKey, job.attempts))
}

func (r *CreditRetrier) reconcile(job creditJob, err error) {
	r.logger.Error("credit needs manual reconciliation: "+job.IdemKey, err)
	if r.mail == nil {
		return
	}
	r.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: r.conf.OpsEmail}},
		Subject: "Points credit needs reconciliation",
		BodyStr: fmt.Sprintf(
			"Credit %s (account %s, amount %d, reason %s) failed after %d attempt(s): %v",
			job.IdemKey, job.AccountID, job.Amount, job.Reason, job.attempts, err,
		),
	})
}
