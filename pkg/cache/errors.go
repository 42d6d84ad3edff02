package cache

import "errors"

// ErrCorrupt is returned by Get when a stored entry could not be decoded.
// The entry has already been removed; callers should treat it as a miss.
var ErrCorrupt = errors.New("corrupt cache entry")
