package core

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate signals a uniqueness violation, e.g. a second unlock
	// record for the same (user, achievement).
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidAmount rejects non-positive increments and negative counters.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnknownAchievement is returned for ids missing from the catalog.
	ErrUnknownAchievement = errors.New("unknown achievement")
	// ErrEmptyUserID is returned when a user id is blank.
	ErrEmptyUserID = errors.New("empty user id")
)
