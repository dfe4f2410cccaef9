package checkin_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/techjoejoe/leadergrid/core/checkin"
)

func TestCodecRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	deadline := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	sess, _ := env.createSession(t, 5, deadline)

	encoded, err := env.codec.Encode(sess, 42)
	assert.NoError(t, err)

	token, err := env.codec.Decode(context.Background(), encoded)
	assert.NoError(t, err)
	assert.Equal(t, sess.ID, token.SessionID)
	assert.Equal(t, sess.Name, token.SessionName)
	assert.Equal(t, 42, token.PointValue)
	assert.True(t, token.Deadline.Equal(deadline), "want deadline %s, got %s", deadline, token.Deadline)
}

func TestCodecEncodeNegativePoints(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.createSession(t, 5, time.Now().Add(time.Hour))

	_, err := env.codec.Encode(sess, -1)
	assert.Error(t, err)
}

func TestCodecDecodeMalformed(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.createSession(t, 5, time.Now().Add(time.Hour))

	// signed with a different key
	otherConf := *env.conf
	otherConf.SecretKey = "some-other-secret"
	otherCodec := checkin.NewCodec(&otherConf, nil)
	forged, err := otherCodec.Encode(sess, 10)
	assert.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"bad signature", forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.codec.Decode(context.Background(), tt.token)
			assert.Equal(t, checkin.ErrMalformedToken, errors.Cause(err))
		})
	}
}

func TestCodecDecodeUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.createSession(t, 5, time.Now().Add(time.Hour))

	// a validly signed token for a session the registry never created
	ghost := sess
	ghost.ID = "00000000-0000-0000-0000-000000000000"
	encoded, err := env.codec.Encode(ghost, 10)
	assert.NoError(t, err)

	_, err = env.codec.Decode(context.Background(), encoded)
	assert.Equal(t, checkin.ErrUnknownSession, errors.Cause(err))
}

func TestCodecDecodeClosedSession(t *testing.T) {
	env := newTestEnv(t)
	sess, _ := env.createSession(t, 5, time.Now().Add(time.Hour))

	encoded, err := env.codec.Encode(sess, 10)
	assert.NoError(t, err)

	_, err = env.registry.Close(context.Background(), sess.ID)
	assert.NoError(t, err)

	_, err = env.codec.Decode(context.Background(), encoded)
	assert.Equal(t, checkin.ErrSessionClosed, errors.Cause(err))
}
