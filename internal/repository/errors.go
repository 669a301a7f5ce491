// Package repository implements the reservation collection stores used by
// service.ReservationStore: in memory, a JSON file, a single Redis key and
// a SQL table (MySQL or Postgres).  Every store loads and replaces the
// whole ordered collection.
package repository

import "errors"

// ErrUnsupportedDriver is returned by NewReservationRepo for SQL drivers
// other than "mysql" and "postgres".
var ErrUnsupportedDriver = errors.New("unsupported sql driver")

// ErrDuplicateID signals a collection containing the same reservation id
// twice.  Stores refuse to persist such a collection.
var ErrDuplicateID = errors.New("duplicate reservation id")
