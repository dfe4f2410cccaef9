package checkin

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core"
)

// AggregateSource recomputes the derived view from the ledger.
type AggregateSource interface {
	GetAggregateView(ctx context.Context, sessionID string) (AggregateView, error)
}

type subscriber struct {
	id int
	ch chan AggregateView
}

// Stream maintains a live AggregateView per session and fans updates out to
// subscribers. A new subscriber always receives a full current snapshot
// before any incremental update. Updates are delivered in ledger
// write-completion order; a slow consumer is conflated to the latest view
// rather than blocking the producer.
type Stream struct {
	source AggregateSource
	logger core.Logger

	mu     sync.Mutex
	subs   map[string][]*subscriber // sessionID -> subscribers
	nextID int
}

func NewStream(source AggregateSource, logger core.Logger) *Stream {
	return &Stream{
		source: source,
		logger: logger,
		subs:   make(map[string][]*subscriber),
	}
}

// Subscribe registers a live feed for the session. The returned channel first
// yields the current snapshot, then every subsequent update until the session
// closes or cancel is called; it is closed on termination.
func (s *Stream) Subscribe(ctx context.Context, sessionID string) (<-chan AggregateView, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot under the lock: no broadcast can interleave, so the feed has
	// no gap between the snapshot and the first incremental update.
	snapshot, err := s.source.GetAggregateView(ctx, sessionID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "computing subscription snapshot")
	}

	ch := make(chan AggregateView, 1)
	ch <- snapshot
	if snapshot.Closed {
		// Finish already ran (or never will for this subscriber): deliver
		// the final snapshot and terminate the feed right away.
		close(ch)
		return ch, func() {}, nil
	}

	s.nextID++
	sub := &subscriber{id: s.nextID, ch: ch}
	s.subs[sessionID] = append(s.subs[sessionID], sub)

	cancel := func() { s.unsubscribe(sessionID, sub.id) }
	return ch, cancel, nil
}

// Broadcast recomputes the session's view and notifies every subscriber.
// Called after each completed ledger write; serialised per stream so that
// subscribers observe views in write-completion order.
func (s *Stream) Broadcast(ctx context.Context, sessionID string) (AggregateView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.source.GetAggregateView(ctx, sessionID)
	if err != nil {
		return AggregateView{}, errors.Wrap(err, "recomputing aggregate view")
	}
	for _, sub := range s.subs[sessionID] {
		push(sub.ch, view)
	}
	return view, nil
}

// Finish emits a final snapshot to every subscriber and terminates all
// subscriptions for the session.
func (s *Stream) Finish(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	final, err := s.source.GetAggregateView(ctx, sessionID)
	if err != nil {
		return errors.Wrap(err, "computing final snapshot")
	}
	for _, sub := range s.subs[sessionID] {
		push(sub.ch, final)
		close(sub.ch)
	}
	delete(s.subs, sessionID)
	return nil
}

func (s *Stream) unsubscribe(sessionID string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[sessionID]
	for i, sub := range subs {
		if sub.id == id {
			close(sub.ch)
			s.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// push conflates: when the subscriber has not drained the previous view yet,
// it is superseded by the latest one.
func push(ch chan AggregateView, view AggregateView) {
	for {
		select {
		case ch <- view:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
