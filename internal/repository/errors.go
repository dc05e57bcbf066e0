package repository

import "github.com/alexanderramin/timeclock/internal/domain"

// ErrNotFound is returned when a lookup matches no row. It is the domain
// sentinel so callers above the store match a single value.
var ErrNotFound = domain.ErrNotFound
