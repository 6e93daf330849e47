package sync

import "errors"

// Failure categories reported in Result.Err. They are matched with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrMissingExternalID   = errors.New("missing external order id")
	ErrUpstream            = errors.New("upstream provider error")
	ErrPersistence         = errors.New("persistence error")
)
