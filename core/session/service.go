package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core"
)

var (
	// errors
	ErrNotFound = errors.New("session not found")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		QuerySessionsByGroup(ctx context.Context, groupID string) ([]Session, error)
		// CloseSession sets the closed flag; closing an already closed
		// session is a no-op.
		CloseSession(ctx context.Context, id string) (Session, error)
		// QueryDueSessions returns open sessions whose deadline is at or
		// before the given horizon.
		QueryDueSessions(ctx context.Context, horizon time.Time) ([]Session, error)
	}

	// Registry owns session metadata and lifecycle. The check-in engine
	// consumes it read-only; the records it writes never mutate a Session
	// beyond the closed and bonus flags.
	Registry struct {
		repo   Repository
		logger core.Logger
	}
)

func NewRegistry(repo Repository, logger core.Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

func (reg *Registry) Create(ctx context.Context, ns NewSession) (Session, error) {
	sess := Session{
		Name:          ns.Name,
		GroupID:       ns.GroupID,
		Deadline:      ns.Deadline.UTC(),
		ExpectedCount: ns.ExpectedCount,
		CreatedAt:     core.NowFunc(),
	}
	return reg.repo.CreateSession(ctx, sess)
}

func (reg *Registry) GetByID(ctx context.Context, id string) (Session, error) {
	return reg.repo.GetSessionByID(ctx, id)
}

func (reg *Registry) QueryByGroup(ctx context.Context, groupID string) ([]Session, error) {
	return reg.repo.QuerySessionsByGroup(ctx, groupID)
}

func (reg *Registry) Close(ctx context.Context, id string) (Session, error) {
	return reg.repo.CloseSession(ctx, id)
}

// ExpireDue closes every open session whose deadline is older than the given
// grace period and returns the sessions it closed.
func (reg *Registry) ExpireDue(ctx context.Context, grace time.Duration) ([]Session, error) {
	horizon := core.NowFunc().Add(-grace)
	due, err := reg.repo.QueryDueSessions(ctx, horizon)
	if err != nil {
		return nil, errors.Wrap(err, "querying due sessions")
	}

	closed := make([]Session, 0, len(due))
	for _, sess := range due {
		c, err := reg.repo.CloseSession(ctx, sess.ID)
		if err != nil {
			reg.logger.Error("closing due session "+sess.ID, err)
			continue
		}
		closed = append(closed, c)
	}
	return closed, nil
}
