package checkin_test

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/techjoejoe/leadergrid/core"
	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/points"
	"github.com/techjoejoe/leadergrid/core/session"
	"github.com/techjoejoe/leadergrid/storage/database/dummy"
)

const testPointValue = 10

type testEnv struct {
	db       *dummydb.DB
	registry *session.Registry
	codec    *checkin.Codec
	svc      *checkin.Service
	stream   *checkin.Stream
	bonus    *checkin.BonusEvaluator
	repo     checkin.Repository
	source   *flakySource
	points   *trackingPoints
	conf     *core.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("newTestEnv() failed: %v", err)
	}
	conf := &core.Config{
		AppName:   "LeaderGrid",
		SecretKey: "test-secret",
		Checkin: core.CheckinConfig{
			BonusPoints:      25,
			CreditMaxRetries: 1,
			CreditRetryDelay: time.Millisecond,
		},
	}
	logger := core.NewConsoleLogger(log.New(ioutil.Discard, "", 0))

	sessRepo := dummydb.NewSessionRepository(db)
	attRepo := dummydb.NewAttendanceRepository(db)
	pts := &trackingPoints{
		svc:      points.NewService(dummydb.NewCreditRepository(db), logger),
		failKeys: make(map[string]int),
	}

	retrier := checkin.NewCreditRetrier(pts, conf, logger, nil)
	source := &flakySource{src: attRepo}
	stream := checkin.NewStream(source, logger)
	bonus := checkin.NewBonusEvaluator(attRepo, pts, retrier, conf, logger)

	return &testEnv{
		db:       db,
		registry: session.NewRegistry(sessRepo, logger),
		codec:    checkin.NewCodec(conf, sessRepo),
		svc:      checkin.NewService(attRepo, sessRepo, pts, stream, bonus, retrier, conf, logger),
		stream:   stream,
		bonus:    bonus,
		repo:     attRepo,
		source:   source,
		points:   pts,
		conf:     conf,
	}
}

// flakySource wraps the stream's aggregate source, optionally failing the
// next recomputations to simulate transient storage trouble.
type flakySource struct {
	src checkin.AggregateSource

	mu       sync.Mutex
	failures int
}

func (s *flakySource) GetAggregateView(ctx context.Context, sessionID string) (checkin.AggregateView, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return checkin.AggregateView{}, context.DeadlineExceeded
	}
	s.mu.Unlock()
	return s.src.GetAggregateView(ctx, sessionID)
}

func (s *flakySource) failNext(times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = times
}

// createSession seeds an open session with a deadline in the future and
// returns it along with a decoded token of testPointValue.
func (env *testEnv) createSession(t *testing.T, expectedCount int, deadline time.Time) (session.Session, checkin.SessionToken) {
	t.Helper()

	sess, err := env.registry.Create(context.Background(), session.NewSession{
		Name:          "Morning Standup",
		GroupID:       "grp-1",
		Deadline:      deadline,
		ExpectedCount: expectedCount,
	})
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}

	encoded, err := env.codec.Encode(sess, testPointValue)
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	token, err := env.codec.Decode(context.Background(), encoded)
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	return sess, token
}

func presentation(sessionID, participantID string, at time.Time) checkin.Presentation {
	return checkin.Presentation{
		SessionID:       sessionID,
		ParticipantID:   participantID,
		ParticipantName: "Participant " + participantID,
		Token:           "-",
		PresentedAt:     at,
	}
}

// trackingPoints wraps the real idempotent points service, counting calls and
// optionally failing specific idempotency keys a number of times.
type trackingPoints struct {
	svc *points.Service

	mu       sync.Mutex
	calls    []string // idempotency keys in call order
	failKeys map[string]int
}

func (p *trackingPoints) Credit(ctx context.Context, accountID string, amount int, reason, idemKey string) error {
	p.mu.Lock()
	p.calls = append(p.calls, idemKey)
	if n := p.failKeys[idemKey]; n > 0 {
		p.failKeys[idemKey] = n - 1
		p.mu.Unlock()
		return context.DeadlineExceeded
	}
	p.mu.Unlock()
	return p.svc.Credit(ctx, accountID, amount, reason, idemKey)
}

func (p *trackingPoints) failNext(idemKey string, times int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failKeys[idemKey] = times
}

func (p *trackingPoints) callCount(idemKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, k := range p.calls {
		if k == idemKey {
			n++
		}
	}
	return n
}

func (p *trackingPoints) balance(t *testing.T, accountID string) int {
	t.Helper()
	balance, err := p.svc.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance() failed: %v", err)
	}
	return balance
}
