package store

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConfigNotFound       = errors.New("config not found")
	ErrLogNotFound          = errors.New("accountability log not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
