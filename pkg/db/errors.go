package db

import "errors"

// ErrBookingNotFound is returned when a booking ID does not exist in the ledger
var ErrBookingNotFound = errors.New("booking not found")

// ErrAssignmentConflict is returned when committing an assignment loses the
// race against a concurrent run that booked the same medic for an
// overlapping window. It is an expected outcome, not a failure of the run.
var ErrAssignmentConflict = errors.New("medic already assigned to an overlapping booking")
