// Package repository implements the occupancy store on top of
// database/sql.  The same repositories serve MySQL, PostgreSQL and
// SQLite; the differences are confined to a Dialect.
//
// Sentinel values below allow higher layers such as the pricing service
// to distinguish between failure scenarios.  ErrNotFound means a lookup
// matched no row; ErrConflict signals a write that violates existing
// state, such as an occupancy row for a schedule that does not exist.
package repository

import "errors"

// ErrNotFound is returned when a lookup by id yields no rows.  The
// pricing service translates it into a rejected request.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be applied because of
// conflicting state in the store.
var ErrConflict = errors.New("conflict")
