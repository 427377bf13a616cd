// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as the attribution selector and the admin handlers to
// distinguish between different failure scenarios without string
// matching.
package repository

import "errors"

// ErrSessionNotFound is returned when a session id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrSessionNotFound = errors.New("session not found")

// ErrConflict is returned when a conditional write finds the row in a
// different state than expected, such as attributing a session that
// was locked or granted by a concurrent writer. The attribution batch
// treats this as a no-op for the affected session.
var ErrConflict = errors.New("conflict")
