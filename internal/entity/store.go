package entity

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// protectedKeys are owned by the store and never taken from a payload.
var protectedKeys = []string{"id", "createdAt", "updatedAt", "deletedAt"}

// Stats counts resident entities by lifecycle state.
type Stats struct {
	Active  int
	Deleted int
}

// Store is a concurrency-safe keyed collection of one resource kind. Entities
// handed out are deep copies of their exported fields (slices, maps and
// pointers included); mutating them does not affect stored state.
type Store[T any, PT Model[T]] struct {
	mu     sync.RWMutex
	items  map[string]PT
	fields map[string]sortField

	match func(item PT, term string) bool
	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// NewStore returns an empty Store for kind T.
func NewStore[T any, PT Model[T]](opts ...Option[T, PT]) *Store[T, PT] {
	s := &Store[T, PT]{
		items:  make(map[string]PT),
		fields: sortFields(reflect.TypeOf((*T)(nil)).Elem()),
	}
	defaultOptions(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create builds a new entity from partial, assigns a fresh identifier and
// stamps createdAt == updatedAt.
func (s *Store[T, PT]) Create(partial map[string]any) (out PT, err error) {
	defer s.guard("create", "", "Failed to create", &err)

	item := PT(new(T))
	if err := merge(item, withoutProtected(partial)); err != nil {
		return nil, invalidInput("create", "Invalid payload", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if _, exists := s.items[id]; exists {
		return nil, internal("create", id, "Failed to create", errors.Errorf("duplicate identifier %q", id))
	}
	now := s.now()
	*item.Metadata() = Base{ID: id, CreatedAt: now, UpdatedAt: now}
	s.items[id] = item
	return clone(item), nil
}

// Get returns the active entity with the given id.
func (s *Store[T, PT]) Get(id string) (out PT, err error) {
	defer s.guard("get", id, "Failed to retrieve", &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, notFound("get", id)
	}
	if item.Metadata().IsDeleted() {
		return nil, &Error{Kind: KindNotFound, Op: "get", ID: id, Message: "Entity has been deleted"}
	}
	return clone(item), nil
}

// List filters, sorts and paginates the active entities.
func (s *Store[T, PT]) List(q Query) (page Page[PT], err error) {
	q = q.Normalize()
	defer s.guard("list", "", "Failed to retrieve", &err)

	var field sortField
	if q.SortBy != "" {
		f, ok := s.fields[strings.ToLower(q.SortBy)]
		if !ok {
			return Page[PT]{Page: q.Page, Limit: q.Limit}, invalidInput("list", fmt.Sprintf("Cannot sort by %q", q.SortBy), nil)
		}
		field = f
	}

	items := s.active(q.Search)
	slices.SortFunc(items, func(a, b PT) int {
		ma, mb := a.Metadata(), b.Metadata()
		if c := ma.CreatedAt.Compare(mb.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(ma.ID, mb.ID)
	})
	if q.SortBy != "" {
		slices.SortStableFunc(items, func(a, b PT) int {
			c := field.compare(reflect.ValueOf(a).Elem(), reflect.ValueOf(b).Elem())
			if q.SortOrder == SortDesc {
				return -c
			}
			return c
		})
	}

	return paginate(items, q), nil
}

// active returns copies of the non-deleted entities matching term.
func (s *Store[T, PT]) active(term string) []PT {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]PT, 0, len(s.items))
	for _, item := range s.items {
		if item.Metadata().IsDeleted() {
			continue
		}
		c := clone(item)
		if term != "" && s.match != nil && !s.match(c, term) {
			continue
		}
		items = append(items, c)
	}
	return items
}

// Update merges partial onto an active entity and refreshes updatedAt.
func (s *Store[T, PT]) Update(id string, partial map[string]any) (out PT, err error) {
	defer s.guard("update", id, "Failed to update", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return nil, notFound("update", id)
	}
	if cur.Metadata().IsDeleted() {
		return nil, invalidState("update", id, "Cannot update deleted entity")
	}

	next := clone(cur)
	if err := merge(next, withoutProtected(partial)); err != nil {
		return nil, invalidInput("update", "Invalid payload", err)
	}
	meta := *cur.Metadata()
	meta.touch(s.now())
	*next.Metadata() = meta
	s.items[id] = next
	return clone(next), nil
}

// Delete soft-deletes an active entity. Deleting an already deleted entity
// is an InvalidState failure and leaves its timestamps untouched.
func (s *Store[T, PT]) Delete(id string) (err error) {
	defer s.guard("delete", id, "Failed to delete", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return notFound("delete", id)
	}
	if cur.Metadata().IsDeleted() {
		return invalidState("delete", id, "Entity already deleted")
	}
	next := clone(cur)
	next.Metadata().softDelete(s.now())
	s.items[id] = next
	return nil
}

// Restore clears the deletion mark of a soft-deleted entity.
func (s *Store[T, PT]) Restore(id string) (out PT, err error) {
	defer s.guard("restore", id, "Failed to restore", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return nil, notFound("restore", id)
	}
	if !cur.Metadata().IsDeleted() {
		return nil, invalidState("restore", id, "Entity is not deleted")
	}
	next := clone(cur)
	next.Metadata().restore(s.now())
	s.items[id] = next
	return clone(next), nil
}

// Purge physically removes entities soft-deleted before the cutoff and
// returns how many were removed.
func (s *Store[T, PT]) Purge(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, item := range s.items {
		if at := item.Metadata().DeletedAt; at != nil && at.Before(before) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Stats reports resident entity counts.
func (s *Store[T, PT]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, item := range s.items {
		if item.Metadata().IsDeleted() {
			st.Deleted++
		} else {
			st.Active++
		}
	}
	return st
}

// guard turns a panic inside an operation into a KindInternal error.
func (s *Store[T, PT]) guard(op, id, msg string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	cause, ok := r.(error)
	if ok {
		cause = errors.WithStack(cause)
	} else {
		cause = errors.Errorf("%v", r)
	}
	s.log.Error().Str("op", op).Str("id", id).Err(cause).Msg("entity store fault")
	*err = internal(op, id, msg, cause)
}

func clone[T any, PT Model[T]](p PT) PT {
	c := *p
	deepCopy(reflect.ValueOf(&c).Elem())
	return PT(&c)
}

func withoutProtected(partial map[string]any) map[string]any {
	if len(partial) == 0 {
		return nil
	}
	out := make(map[string]any, len(partial))
	for k, v := range partial {
		if slices.ContainsFunc(protectedKeys, func(p string) bool { return strings.EqualFold(p, k) }) {
			continue
		}
		out[k] = v
	}
	return out
}
