// Package repository owns every ticket. Two stores are provided: an
// in-memory store (the default) and a PostgreSQL store built on pgx.
package repository

import (
	"errors"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
)

// ErrNotFound is returned when a requested ticket does not exist.
var ErrNotFound = errors.New("ticket not found")

// ErrCapacityExceeded is returned when the facility has no free spot.
var ErrCapacityExceeded = errors.New("facility is full")

// ErrAlreadyCompleted is returned when checking out a ticket twice.
var ErrAlreadyCompleted = errors.New("ticket is already checked out")

// ErrDuplicateID is returned when inserting a ticket whose id is taken.
var ErrDuplicateID = errors.New("ticket id already exists")

// AdmitFunc decides, given the current occupancy, whether one more vehicle
// may enter. Stores call it while holding their admission lock.
type AdmitFunc func(occupied int) bool

// PriceFunc computes the fee for an active ticket. Stores call it while
// holding the ticket's lock, so the fee and exit time land together.
type PriceFunc func(t model.Ticket) (int64, error)

// reverse returns tickets most recent first.
func reverse(in []model.Ticket) []model.Ticket {
	out := make([]model.Ticket, len(in))
	for i, t := range in {
		out[len(in)-1-i] = t
	}
	return out
}
