// Package repository defines error types that are reused across the
// persistence layer. These sentinel values allow higher layers such as
// the reservation engine and the HTTP handlers to distinguish between
// failure scenarios without inspecting SQL details. For example,
// ErrSeatNotFound indicates that a seat id does not exist under the
// given service, which handlers translate into an HTTP 404 response.
package repository

import "errors"

// ErrServiceNotFound is returned when no service row exists for the
// requested identifier.
var ErrServiceNotFound = errors.New("service not found")

// ErrSeatNotFound is returned when the service exists but holds no
// seat with the requested identifier.
var ErrSeatNotFound = errors.New("seat not found")
