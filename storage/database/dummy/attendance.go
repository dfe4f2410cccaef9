package dummydb

import (
	"context"
	"sort"

	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/session"
)

type attendanceRepository struct {
	db       *attendanceTable
	sessions *sessionTable
}

var _ checkin.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance, sessions: db.session}
}

func (repo *attendanceRepository) CreateAttendanceIfAbsent(ctx context.Context, rec checkin.AttendanceRecord) (checkin.AttendanceRecord, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := attendanceKey{rec.SessionID, rec.ParticipantID}
	if existing, ok := repo.db.table[key]; ok {
		return *existing, false, nil
	}
	repo.db.table[key] = &rec
	return rec, true, nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, sessionID, participantID string) (checkin.AttendanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[attendanceKey{sessionID, participantID}]; ok {
		return *rec, nil
	}
	return checkin.AttendanceRecord{}, session.ErrNotFound
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, sessionID string) ([]checkin.AttendanceRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]checkin.AttendanceRecord, 0)
	for key, rec := range repo.db.table {
		if key.sessionID == sessionID {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].PresentedAt.Before(recs[j].PresentedAt) })
	return recs, nil
}

func (repo *attendanceRepository) GetAggregateView(ctx context.Context, sessionID string) (checkin.AggregateView, error) {
	repo.sessions.RLock()
	sess, ok := repo.sessions.table[sessionID]
	if !ok {
		repo.sessions.RUnlock()
		return checkin.AggregateView{}, session.ErrNotFound
	}
	expected, closed, bonusIssued := sess.ExpectedCount, sess.Closed, sess.BonusIssued
	repo.sessions.RUnlock()

	repo.db.RLock()
	defer repo.db.RUnlock()

	view := checkin.AggregateView{
		SessionID:     sessionID,
		ExpectedCount: expected,
		Closed:        closed,
		BonusIssued:   bonusIssued,
	}
	for key, rec := range repo.db.table {
		if key.sessionID != sessionID {
			continue
		}
		view.TotalPresented++
		if rec.Classification == checkin.OnTime {
			view.OnTimeCount++
		} else {
			view.LateCount++
		}
	}
	view.Completion = view.TotalPresented == expected
	view.PerfectAttendance = view.Completion && view.LateCount == 0
	return view, nil
}

func (repo *attendanceRepository) SetBonusIssued(ctx context.Context, sessionID string) (bool, error) {
	repo.sessions.Lock()
	defer repo.sessions.Unlock()

	sess, ok := repo.sessions.table[sessionID]
	if !ok {
		return false, session.ErrNotFound
	}
	if sess.BonusIssued {
		return false, nil
	}
	sess.BonusIssued = true
	return true, nil
}
