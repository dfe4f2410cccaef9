package session_test

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/techjoejoe/leadergrid/core"
	"github.com/techjoejoe/leadergrid/core/session"
	"github.com/techjoejoe/leadergrid/storage/database/dummy"
)

func newRegistry(t *testing.T) *session.Registry {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("newRegistry() failed: %v", err)
	}
	logger := core.NewConsoleLogger(log.New(ioutil.Discard, "", 0))
	return session.NewRegistry(dummydb.NewSessionRepository(db), logger)
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(time.Hour)

	sess, err := reg.Create(ctx, session.NewSession{
		Name:          "Opening Keynote",
		GroupID:       "grp-1",
		Deadline:      deadline,
		ExpectedCount: 40,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.Closed)
	assert.False(t, sess.BonusIssued)

	got, err := reg.GetByID(ctx, sess.ID)
	assert.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "Opening Keynote", got.Name)
	assert.True(t, got.Deadline.Equal(deadline))
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := newRegistry(t)

	_, err := reg.GetByID(context.Background(), "nope")
	assert.Equal(t, session.ErrNotFound, errors.Cause(err))
}

func TestRegistryQueryByGroup(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(time.Hour)

	for _, name := range []string{"Day 1", "Day 2"} {
		_, err := reg.Create(ctx, session.NewSession{Name: name, GroupID: "grp-1", Deadline: deadline, ExpectedCount: 5})
		assert.NoError(t, err)
	}
	_, err := reg.Create(ctx, session.NewSession{Name: "Other", GroupID: "grp-2", Deadline: deadline, ExpectedCount: 5})
	assert.NoError(t, err)

	sessions, err := reg.QueryByGroup(ctx, "grp-1")
	assert.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestRegistryCloseIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	sess, err := reg.Create(ctx, session.NewSession{
		Name:          "Workshop",
		GroupID:       "grp-1",
		Deadline:      time.Now().UTC().Add(time.Hour),
		ExpectedCount: 5,
	})
	assert.NoError(t, err)

	closed, err := reg.Close(ctx, sess.ID)
	assert.NoError(t, err)
	assert.True(t, closed.Closed)

	again, err := reg.Close(ctx, sess.ID)
	assert.NoError(t, err)
	assert.True(t, again.Closed)
}

func TestRegistryExpireDue(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	restore := core.NowFunc
	defer func() { core.NowFunc = restore }()

	base := time.Date(2021, 6, 1, 9, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return base }

	due, err := reg.Create(ctx, session.NewSession{
		Name: "Early", GroupID: "grp-1", Deadline: base.Add(30 * time.Minute), ExpectedCount: 5,
	})
	assert.NoError(t, err)
	open, err := reg.Create(ctx, session.NewSession{
		Name: "Later", GroupID: "grp-1", Deadline: base.Add(2 * time.Hour), ExpectedCount: 5,
	})
	assert.NoError(t, err)

	core.NowFunc = func() time.Time { return base.Add(time.Hour) }

	closed, err := reg.ExpireDue(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, closed, 1)
	assert.Equal(t, due.ID, closed[0].ID)

	still, err := reg.GetByID(ctx, open.ID)
	assert.NoError(t, err)
	assert.False(t, still.Closed)

	// a second sweep finds nothing left to close
	closed, err = reg.ExpireDue(ctx, 0)
	assert.NoError(t, err)
	assert.Empty(t, closed)
}

func TestNewSessionValidation(t *testing.T) {
	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator(enLocale.Locale())
	core.InitValidators(validate, translator)

	tests := []struct {
		name    string
		ns      session.NewSession
		wantErr bool
	}{
		{"valid", session.NewSession{
			Name: "Standup", GroupID: "grp-1",
			Deadline: time.Now().UTC().Add(time.Hour), ExpectedCount: 3,
		}, false},
		{"missing name", session.NewSession{
			GroupID: "grp-1", Deadline: time.Now().UTC().Add(time.Hour), ExpectedCount: 3,
		}, true},
		{"past deadline", session.NewSession{
			Name: "Standup", GroupID: "grp-1",
			Deadline: time.Now().UTC().Add(-time.Hour), ExpectedCount: 3,
		}, true},
		{"zero expected count", session.NewSession{
			Name: "Standup", GroupID: "grp-1",
			Deadline: time.Now().UTC().Add(time.Hour),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
