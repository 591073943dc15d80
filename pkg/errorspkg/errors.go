// Package errorspkg provides common app errors.
package errorspkg

import "errors"

// ErrInternal indicates internal server error.
var ErrInternal = errors.New("internal")

// ErrUpstreamTimeout indicates that a store call exceeded its deadline.
// The caller must treat the operation as not applied and rely on the
// upstream retry; it must not retry a possibly-applied mutation itself.
var ErrUpstreamTimeout = errors.New("upstream timeout")
