package checkin

import (
	"context"

	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core"
)

type (
	// Repository is the engine's storage boundary. CreateAttendanceIfAbsent
	// and SetBonusIssued must be atomic at the storage layer (unique key,
	// conditional write or transaction): they are the sole source of truth
	// for "first writer wins". The engine never read-then-writes around them.
	Repository interface {
		AggregateSource

		// CreateAttendanceIfAbsent inserts the record only if no record
		// exists at (SessionID, ParticipantID). It returns the stored record
		// and whether this call created it.
		CreateAttendanceIfAbsent(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, bool, error)
		GetAttendance(ctx context.Context, sessionID, participantID string) (AttendanceRecord, error)
		QueryAttendance(ctx context.Context, sessionID string) ([]AttendanceRecord, error)
		// SetBonusIssued flips the session's bonus flag and reports whether
		// this call performed the flip. At most one caller ever gets true.
		SetBonusIssued(ctx context.Context, sessionID string) (bool, error)
	}

	// Service is the attendance ledger: an append-only, idempotent store of
	// one record per (session, participant).
	Service struct {
		repo      Repository
		directory SessionDirectory
		points    PointsAccount
		stream    *Stream
		bonus     *BonusEvaluator
		retrier   *CreditRetrier
		conf      *core.Config
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	directory SessionDirectory,
	points PointsAccount,
	stream *Stream,
	bonus *BonusEvaluator,
	retrier *CreditRetrier,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		points:    points,
		stream:    stream,
		bonus:     bonus,
		retrier:   retrier,
		conf:      conf,
		logger:    logger,
	}
}

// Record admits one presentation into the ledger.
//
// The write is idempotent: a duplicate (session, participant) presentation
// returns the existing record unchanged with no further side effects, even
// under concurrent submissions. On a newly created record the token's point
// value is credited (zero for Late under the default policy); a credit
// failure after the durable write is surfaced as *CreditError carrying the
// record, so a supervisor can retry the credit without re-admitting the
// participant.
func (svc *Service) Record(ctx context.Context, p Presentation, token SessionToken) (AttendanceRecord, error) {
	// Re-validate session state at write time; the token may be stale.
	if p.SessionID != token.SessionID {
		return AttendanceRecord{}, errors.Wrap(ErrSessionClosed, "token does not belong to this session")
	}
	sess, err := svc.directory.GetSession(ctx, p.SessionID)
	if err != nil {
		return AttendanceRecord{}, errors.Wrap(err, "re-validating session")
	}
	if sess.Closed {
		return AttendanceRecord{}, errors.Wrap(ErrSessionClosed, sess.ID)
	}

	classification := Classify(p.PresentedAt, token.Deadline)
	points := token.PointValue
	if classification == Late && !svc.conf.Checkin.LateEarnsPoints {
		points = 0
	}

	rec := AttendanceRecord{
		SessionID:       p.SessionID,
		ParticipantID:   p.ParticipantID,
		ParticipantName: p.ParticipantName,
		PresentedAt:     p.PresentedAt.UTC(),
		Classification:  classification,
		PointsAwarded:   points,
	}

	stored, created, err := svc.repo.CreateAttendanceIfAbsent(ctx, rec)
	if err != nil {
		return AttendanceRecord{}, errors.Wrap(err, "writing attendance record")
	}
	if !created {
		// Idempotent no-op: no credit, no notification. The earlier write
		// already produced both.
		return stored, nil
	}

	creditErr := svc.credit(ctx, stored)

	view, err := svc.stream.Broadcast(ctx, p.SessionID)
	if err != nil {
		svc.logger.Error("broadcasting aggregate update for session "+p.SessionID, err)
		// a lost notification must not also lose the bonus check: this may
		// have been the completing write
		view, err = svc.repo.GetAggregateView(ctx, p.SessionID)
	}
	if err != nil {
		svc.logger.Error("recomputing aggregate view for session "+p.SessionID, err)
	} else if err := svc.bonus.Evaluate(ctx, view); err != nil {
		svc.logger.Error("evaluating bonus for session "+p.SessionID, err)
	}

	if creditErr != nil {
		return stored, creditErr
	}
	return stored, nil
}

func (svc *Service) credit(ctx context.Context, rec AttendanceRecord) error {
	if rec.PointsAwarded == 0 && svc.conf.Checkin.SkipZeroCredits {
		return nil
	}
	key := CreditKey(rec.SessionID, rec.ParticipantID, ReasonCheckin)
	if err := svc.points.Credit(ctx, rec.ParticipantID, rec.PointsAwarded, ReasonCheckin, key); err != nil {
		svc.retrier.Enqueue(creditJob{
			AccountID: rec.ParticipantID,
			Amount:    rec.PointsAwarded,
			Reason:    ReasonCheckin,
			IdemKey:   key,
		})
		return &CreditError{Record: rec, Err: err}
	}
	return nil
}

// Get returns the record for (sessionID, participantID), or session.ErrNotFound
// via the repository's not-found mapping.
func (svc *Service) Get(ctx context.Context, sessionID, participantID string) (AttendanceRecord, error) {
	return svc.repo.GetAttendance(ctx, sessionID, participantID)
}

// Query returns all records for a session.
func (svc *Service) Query(ctx context.Context, sessionID string) ([]AttendanceRecord, error) {
	return svc.repo.QueryAttendance(ctx, sessionID)
}

// Aggregate returns the current derived view for a session.
func (svc *Service) Aggregate(ctx context.Context, sessionID string) (AggregateView, error) {
	return svc.repo.GetAggregateView(ctx, sessionID)
}

// Subscribe opens a live feed of the session's aggregate view:
// snapshot first, then every update, terminated when the session closes.
func (svc *Service) Subscribe(ctx context.Context, sessionID string) (<-chan AggregateView, func(), error) {
	if _, err := svc.directory.GetSession(ctx, sessionID); err != nil {
		return nil, nil, errors.Wrap(err, "resolving session")
	}
	return svc.stream.Subscribe(ctx, sessionID)
}

// Finish emits a final snapshot and terminates all subscriptions for a
// session. Called after the registry marks it closed.
func (svc *Service) Finish(ctx context.Context, sessionID string) error {
	return svc.stream.Finish(ctx, sessionID)
}
