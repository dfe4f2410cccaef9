package checkin

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core"
	"github.com/techjoejoe/leadergrid/core/session"
)

// SessionDirectory is the narrow, read-only view of the session registry the
// engine consumes.
type SessionDirectory interface {
	GetSession(ctx context.Context, id string) (session.Session, error)
}

// TokenClaims is the signed payload of a scannable session token.
// The deadline travels inside the token so that classification does not need
// a registry round-trip; jwt expiry is deliberately unset since lateness is a
// classification outcome, not a parse failure.
type TokenClaims struct {
	jwt.StandardClaims
	SessionName string `json:"session_name,omitempty"`
	Deadline    string `json:"on_time_deadline,omitempty"` // RFC3339
	PointValue  int    `json:"point_value"`
}

// Codec encodes and decodes session tokens as HMAC-SHA256 signed JWTs.
type Codec struct {
	signKey   []byte
	issuer    string
	directory SessionDirectory
}

func NewCodec(conf *core.Config, directory SessionDirectory) *Codec {
	return &Codec{
		signKey:   []byte(conf.SecretKey),
		issuer:    conf.AppName,
		directory: directory,
	}
}

// Encode produces a self-describing token for the given session. Pure
// transformation; no side effects.
func (c *Codec) Encode(sess session.Session, pointValue int) (string, error) {
	if pointValue < 0 {
		return "", errors.New("negative point value")
	}

	claims := &TokenClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:   c.issuer,
			Subject:  sess.ID,
			IssuedAt: core.NowFunc().Unix(),
		},
		SessionName: sess.Name,
		Deadline:    sess.Deadline.UTC().Format(time.RFC3339Nano),
		PointValue:  pointValue,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(c.signKey)
	if err != nil {
		return "", errors.Wrap(err, "signing session token")
	}
	return ss, nil
}

// Decode parses and verifies a presented token and checks the embedded
// session against the registry. The ledger still re-validates session state
// at write time; decoding alone admits nobody.
func (c *Codec) Decode(ctx context.Context, tokenStr string) (SessionToken, error) {
	claims := new(TokenClaims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return c.signKey, nil
	})
	if err != nil || !token.Valid {
		return SessionToken{}, errors.Wrap(ErrMalformedToken, "parsing token")
	}
	if claims.Subject == "" || claims.PointValue < 0 {
		return SessionToken{}, errors.Wrap(ErrMalformedToken, "incomplete claims")
	}
	deadline, err := time.Parse(time.RFC3339Nano, claims.Deadline)
	if err != nil {
		return SessionToken{}, errors.Wrap(ErrMalformedToken, "bad deadline")
	}

	sess, err := c.directory.GetSession(ctx, claims.Subject)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return SessionToken{}, errors.Wrap(ErrUnknownSession, claims.Subject)
		}
		return SessionToken{}, errors.Wrap(err, "looking up token session")
	}
	if sess.Closed {
		return SessionToken{}, errors.Wrap(ErrSessionClosed, sess.ID)
	}

	return SessionToken{
		SessionID:   sess.ID,
		SessionName: claims.SessionName,
		Deadline:    deadline,
		PointValue:  claims.PointValue,
		IssuedAt:    time.Unix(claims.IssuedAt, 0).UTC(),
	}, nil
}
