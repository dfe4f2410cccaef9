package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/techjoejoe/leadergrid/core/checkin"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ checkin.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// CreateAttendanceIfAbsent relies on the (session_id, participant_id) primary
// key: a conflicting insert affects zero rows and the first writer's record is
// returned unchanged. This is the engine's idempotency boundary; no
// application-level locking is involved.
func (repo attendanceRepository) CreateAttendanceIfAbsent(ctx context.Context, rec checkin.AttendanceRecord) (checkin.AttendanceRecord, bool, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance_record (session_id, participant_id, participant_name, presented_at, classification, points_awarded)
		VALUES (:session_id, :participant_id, :participant_name, :presented_at, :classification, :points_awarded)
		ON CONFLICT (session_id, participant_id) DO NOTHING`,
		rec,
	)
	if err != nil {
		return checkin.AttendanceRecord{}, false, trapWriteErr(err, "inserting attendance record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return checkin.AttendanceRecord{}, false, trapWriteErr(err, "checking attendance insert")
	}
	if n == 1 {
		return rec, true, nil
	}

	existing, err := repo.GetAttendance(ctx, rec.SessionID, rec.ParticipantID)
	if err != nil {
		return checkin.AttendanceRecord{}, false, err
	}
	return existing, false, nil
}

func (repo attendanceRepository) GetAttendance(ctx context.Context, sessionID, participantID string) (checkin.AttendanceRecord, error) {
	var rec checkin.AttendanceRecord
	err := repo.db.GetContext(ctx, &rec, `
		SELECT * FROM attendance_record WHERE session_id = $1 AND participant_id = $2`,
		sessionID, participantID,
	)
	if err != nil {
		return checkin.AttendanceRecord{}, trapNoRowsErr(err, "getting attendance record")
	}
	return rec, nil
}

func (repo attendanceRepository) QueryAttendance(ctx context.Context, sessionID string) ([]checkin.AttendanceRecord, error) {
	recs := make([]checkin.AttendanceRecord, 0)
	err := repo.db.SelectContext(ctx, &recs, `
		SELECT * FROM attendance_record WHERE session_id = $1 ORDER BY presented_at`,
		sessionID,
	)
	if err != nil {
		return nil, trapNoRowsErr(err, "querying attendance records")
	}
	return recs, nil
}

func (repo attendanceRepository) GetAggregateView(ctx context.Context, sessionID string) (checkin.AggregateView, error) {
	var view checkin.AggregateView
	err := repo.db.GetContext(ctx, &view, `
		SELECT s.id AS session_id,
		       s.expected_count,
		       s.closed,
		       s.bonus_issued,
		       COUNT(r.participant_id)                                AS total_presented,
		       COUNT(*) FILTER (WHERE r.classification = 'OnTime')    AS on_time_count,
		       COUNT(*) FILTER (WHERE r.classification = 'Late')      AS late_count,
		       COUNT(r.participant_id) = s.expected_count             AS completion,
		       COUNT(r.participant_id) = s.expected_count
		           AND COUNT(*) FILTER (WHERE r.classification = 'Late') = 0 AS perfect_attendance
		FROM checkin_session s
		LEFT JOIN attendance_record r ON r.session_id = s.id
		WHERE s.id = $1
		GROUP BY s.id`,
		sessionID,
	)
	if err != nil {
		return checkin.AggregateView{}, trapNoRowsErr(err, "computing aggregate view")
	}
	return view, nil
}

// SetBonusIssued performs the conditional one-way flip: under any number of
// concurrent callers exactly one ever sees an affected row.
func (repo attendanceRepository) SetBonusIssued(ctx context.Context, sessionID string) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE checkin_session SET bonus_issued = TRUE WHERE id = $1 AND NOT bonus_issued`,
		sessionID,
	)
	if err != nil {
		return false, trapWriteErr(err, "flipping bonus flag")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, trapWriteErr(err, "checking bonus flip")
	}
	return n == 1, nil
}
