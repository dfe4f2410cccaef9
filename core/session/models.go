package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/techjoejoe/leadergrid/core"
)

// Session is a time-boxed attendance window. Immutable once created except
// for the Closed flag, set when the engine or an operator ends it.
type Session struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	GroupID       string    `json:"group_id" db:"group_id"`
	Deadline      time.Time `json:"on_time_deadline" db:"on_time_deadline"` // UTC
	ExpectedCount int       `json:"expected_count" db:"expected_count"`
	Closed        bool      `json:"closed" db:"closed"`
	BonusIssued   bool      `json:"bonus_issued" db:"bonus_issued"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Name          string    `json:"name" validate:"required"`
	GroupID       string    `json:"group_id" validate:"required"`
	Deadline      time.Time `json:"on_time_deadline" validate:"required,future"`
	ExpectedCount int       `json:"expected_count" validate:"required,min=1"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.GroupID = core.CleanString(ns.GroupID)
	return validate.Struct(ns)
}
