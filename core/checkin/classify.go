package checkin

import "time"

// Classify computes the timeliness of a presentation against the on-time
// deadline. OnTime iff presentedAt is strictly before the deadline: a
// presentation at the exact deadline instant is Late.
func Classify(presentedAt, deadline time.Time) Classification {
	if presentedAt.Before(deadline) {
		return OnTime
	}
	return Late
}
