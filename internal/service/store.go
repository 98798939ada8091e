package service

import "time"

// StateStore handles persistence of pending authorization states
type StateStore interface {
	InsertState(state string, created time.Time, expiration time.Time) error
	ConsumeState(state string, now time.Time) (valid bool, err error)
	PurgeExpiredStates(now time.Time) (count int64, err error)
}
