package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/techjoejoe/leadergrid/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sess.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO checkin_session (id, name, group_id, on_time_deadline, expected_count, closed, bonus_issued, created_at)
		VALUES (:id, :name, :group_id, :on_time_deadline, :expected_count, :closed, :bonus_issued, :created_at)`,
		sess,
	)
	if err != nil {
		return session.Session{}, trapWriteErr(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	err := repo.db.GetContext(ctx, &sess, `SELECT * FROM checkin_session WHERE id = $1`, id)
	if err != nil {
		return session.Session{}, trapNoRowsErr(err, "getting session by ID")
	}
	return sess, nil
}

// GetSession satisfies the engine's read-only session directory.
func (repo sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	return repo.GetSessionByID(ctx, id)
}

func (repo sessionRepository) QuerySessionsByGroup(ctx context.Context, groupID string) ([]session.Session, error) {
	sessions := make([]session.Session, 0)
	err := repo.db.SelectContext(ctx, &sessions, `
		SELECT * FROM checkin_session WHERE group_id = $1 ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, trapNoRowsErr(err, "querying sessions by group")
	}
	return sessions, nil
}

func (repo sessionRepository) CloseSession(ctx context.Context, id string) (session.Session, error) {
	if _, err := repo.db.ExecContext(ctx, `UPDATE checkin_session SET closed = TRUE WHERE id = $1`, id); err != nil {
		return session.Session{}, trapWriteErr(err, "closing session")
	}
	return repo.GetSessionByID(ctx, id)
}

func (repo sessionRepository) QueryDueSessions(ctx context.Context, horizon time.Time) ([]session.Session, error) {
	sessions := make([]session.Session, 0)
	err := repo.db.SelectContext(ctx, &sessions, `
		SELECT * FROM checkin_session WHERE NOT closed AND on_time_deadline <= $1`,
		horizon.UTC(),
	)
	if err != nil {
		return nil, trapNoRowsErr(err, "querying due sessions")
	}
	return sessions, nil
}
