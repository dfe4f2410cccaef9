package checkin

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/techjoejoe/leadergrid/core"
)

// Classification is the timeliness outcome of a presentation.
type Classification string

const (
	OnTime Classification = "OnTime"
	Late   Classification = "Late"
)

// SessionToken is the decoded payload of a scanned code. Tokens are bearer
// credentials: any holder of a valid token may submit a presentation. Expiry
// is enforced by the deadline and session state, not by the token itself.
type SessionToken struct {
	SessionID   string    `json:"session_id"`
	SessionName string    `json:"session_name"`
	Deadline    time.Time `json:"on_time_deadline"`
	PointValue  int       `json:"point_value"`
	IssuedAt    time.Time `json:"issued_at"`
}

// AttendanceRecord is one participant's presentation in a session.
// Keyed by (SessionID, ParticipantID); created exactly once, never updated
// or deleted by the engine.
type AttendanceRecord struct {
	SessionID       string         `json:"session_id" db:"session_id"`
	ParticipantID   string         `json:"participant_id" db:"participant_id"`
	ParticipantName string         `json:"participant_name" db:"participant_name"`
	PresentedAt     time.Time      `json:"presented_at" db:"presented_at"`
	Classification  Classification `json:"classification" db:"classification"`
	PointsAwarded   int            `json:"points_awarded" db:"points_awarded"`
}

// AggregateView is the derived, non-authoritative summary of a session's
// ledger. It is always recomputed from the records, never hand-mutated.
type AggregateView struct {
	SessionID         string `json:"session_id" db:"session_id"`
	ExpectedCount     int    `json:"expected_count" db:"expected_count"`
	TotalPresented    int    `json:"total_presented" db:"total_presented"`
	OnTimeCount       int    `json:"on_time_count" db:"on_time_count"`
	LateCount         int    `json:"late_count" db:"late_count"`
	Completion        bool   `json:"completion" db:"completion"`
	PerfectAttendance bool   `json:"perfect_attendance" db:"perfect_attendance"`
	BonusIssued       bool   `json:"bonus_issued" db:"bonus_issued"`
	Closed            bool   `json:"closed" db:"closed"`
}

// Presentation contains information needed to submit a scanned token.
type Presentation struct {
	SessionID       string    `json:"session_id" validate:"required"`
	ParticipantID   string    `json:"participant_id" validate:"required"`
	ParticipantName string    `json:"participant_name" validate:"required"`
	Token           string    `json:"token" validate:"required"`
	PresentedAt     time.Time `json:"presented_at"`
}

func (p *Presentation) Validate(validate *validator.Validate) error {
	p.SessionID = core.CleanString(p.SessionID)
	p.ParticipantID = core.CleanString(p.ParticipantID)
	p.ParticipantName = core.CleanString(p.ParticipantName)
	if p.PresentedAt.IsZero() {
		p.PresentedAt = core.NowFunc()
	}
	return validate.Struct(p)
}
