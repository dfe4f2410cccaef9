package dummydb

import (
	"sync"

	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/points"
	"github.com/techjoejoe/leadergrid/core/session"
)

// DB is an in-memory storage backend with the same atomicity guarantees as
// the real one: every create-if-absent runs under its table's write lock.
// Used by tests.
type DB struct {
	session    *sessionTable
	attendance *attendanceTable
	credit     *creditTable
}

type sessionTable struct {
	sync.RWMutex
	table map[string]*session.Session
}

type attendanceTable struct {
	sync.RWMutex
	table map[attendanceKey]*checkin.AttendanceRecord
}

type attendanceKey struct {
	sessionID     string
	participantID string
}

type creditTable struct {
	sync.RWMutex
	table map[string]*points.Credit // keyed by idempotency key
}

func Open() (*DB, error) {
	return &DB{
		session:    &sessionTable{table: make(map[string]*session.Session)},
		attendance: &attendanceTable{table: make(map[attendanceKey]*checkin.AttendanceRecord)},
		credit:     &creditTable{table: make(map[string]*points.Credit)},
	}, nil
}
