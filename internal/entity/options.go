package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Option configures a Store.
type Option[T any, PT Model[T]] func(*Store[T, PT])

// WithSearch installs the matcher used when a query carries a search term.
// Without one, search is a pass-through.
func WithSearch[T any, PT Model[T]](match func(item PT, term string) bool) Option[T, PT] {
	return func(s *Store[T, PT]) { s.match = match }
}

// WithClock overrides time.Now.
func WithClock[T any, PT Model[T]](now func() time.Time) Option[T, PT] {
	return func(s *Store[T, PT]) { s.now = now }
}

// WithIDGenerator overrides the identifier source (random UUIDs by default).
func WithIDGenerator[T any, PT Model[T]](gen func() string) Option[T, PT] {
	return func(s *Store[T, PT]) { s.newID = gen }
}

// WithLogger sets the logger used for internal faults.
func WithLogger[T any, PT Model[T]](l zerolog.Logger) Option[T, PT] {
	return func(s *Store[T, PT]) { s.log = l }
}

func defaultOptions[T any, PT Model[T]](s *Store[T, PT]) {
	s.now = time.Now
	s.newID = func() string { return uuid.New().String() }
	s.log = log.Logger
}
