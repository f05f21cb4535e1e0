// Package entity provides a generic in-memory resource store with soft-delete,
// search, sort and pagination. Concrete resource kinds embed Base and are stored
// by a Store parameterized over the kind.
package entity

import "time"

// Base carries the identity and lifecycle timestamps shared by every resource kind.
type Base struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Metadata returns the receiver so kinds embedding Base satisfy Entity.
func (b *Base) Metadata() *Base { return b }

// IsDeleted reports whether the entity is soft-deleted.
func (b *Base) IsDeleted() bool { return b.DeletedAt != nil }

// touch refreshes UpdatedAt, never moving it backwards.
func (b *Base) touch(now time.Time) {
	if now.Before(b.UpdatedAt) {
		return
	}
	b.UpdatedAt = now
}

func (b *Base) softDelete(now time.Time) {
	b.touch(now)
	at := b.UpdatedAt
	b.DeletedAt = &at
}

func (b *Base) restore(now time.Time) {
	b.DeletedAt = nil
	b.touch(now)
}

// Entity is the capability a type must provide to be held by a Store.
type Entity interface {
	Metadata() *Base
}

// Model constrains PT to be a pointer to T that satisfies Entity. Kinds embed
// Base by value, so *Kind is the Model and Kind is T.
type Model[T any] interface {
	*T
	Entity
}
