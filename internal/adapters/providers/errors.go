package providers

import "errors"

var (
	// ErrProviderUnavailable is wrapped by adapters when the upstream cannot be reached
	// or answers with a server-side failure.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrOrderNotFound is wrapped by adapters when the upstream has no such order.
	ErrOrderNotFound = errors.New("order not found at provider")
)
