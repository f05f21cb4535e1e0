// Package resource holds the concrete resource kinds served by the scaffold.
package resource

import (
	"strings"

	"crud-scaffold/internal/entity"
)

// Note is a short titled text with optional tags.
type Note struct {
	entity.Base
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
}

// NoteStore is the entity store for notes.
type NoteStore = entity.Store[Note, *Note]

// NewNoteStore returns an empty note store that searches title and body.
func NewNoteStore(opts ...entity.Option[Note, *Note]) *NoteStore {
	opts = append([]entity.Option[Note, *Note]{entity.WithSearch(MatchNote)}, opts...)
	return entity.NewStore[Note](opts...)
}

// MatchNote reports whether term occurs in the note's title or body, ignoring case.
func MatchNote(n *Note, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(n.Title), term) ||
		strings.Contains(strings.ToLower(n.Body), term)
}
