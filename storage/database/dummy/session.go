package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/techjoejoe/leadergrid/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	repo.db.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

// GetSession satisfies the engine's read-only session directory.
func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	return repo.GetSessionByID(ctx, id)
}

func (repo *sessionRepository) QuerySessionsByGroup(ctx context.Context, groupID string) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0)
	for _, sess := range repo.db.table {
		if sess.GroupID == groupID {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions, nil
}

func (repo *sessionRepository) CloseSession(ctx context.Context, id string) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.Closed = true
	return *sess, nil
}

func (repo *sessionRepository) QueryDueSessions(ctx context.Context, horizon time.Time) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]session.Session, 0)
	for _, sess := range repo.db.table {
		if !sess.Closed && !sess.Deadline.After(horizon) {
			sessions = append(sessions, *sess)
		}
	}
	return sessions, nil
}
