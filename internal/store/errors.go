package store

import "errors"

// errStoreUnavailable is returned by MemoryStore when a test has toggled
// simulated unavailability.
var errStoreUnavailable = errors.New("store unavailable")
