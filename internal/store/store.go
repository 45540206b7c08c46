// Package store provides a per-user document store with atomic batch writes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidKey is returned when a user, collection or document ID is empty.
	ErrInvalidKey = errors.New("invalid document key")

	// ErrEmptyBatch is returned when committing a batch with no mutations.
	ErrEmptyBatch = errors.New("empty batch")
)

// Key identifies a document within a user's collection.
type Key struct {
	UserID     string
	Collection string
	ID         string
}

// Validate checks that every part of the key is set.
func (k Key) Validate() error {
	if k.UserID == "" || k.Collection == "" || k.ID == "" {
		return fmt.Errorf("%w: user=%q collection=%q id=%q", ErrInvalidKey, k.UserID, k.Collection, k.ID)
	}
	return nil
}

// Document is a JSON payload stored under a Key.
type Document struct {
	Key
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key Key) (Document, error)
	List(ctx context.Context, userID, collection string) ([]Document, error)
	Put(ctx context.Context, doc Document) (Document, error)
	Delete(ctx context.Context, key Key) error
	Commit(ctx context.Context, batch *Batch) error
	Close() error
}

// Op is the kind of a staged mutation.
type Op int

const (
	OpSet Op = iota
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Mutation is a single staged write.
type Mutation struct {
	Op       Op
	Document Document
}

// Batch stages mutations that are applied together by Store.Commit: either
// every mutation is applied or none is. Deleting a missing document inside a
// batch is not an error.
type Batch struct {
	mutations []Mutation
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Set stages a create-or-replace of doc.
func (b *Batch) Set(doc Document) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpSet, Document: doc})
	return b
}

// Delete stages removal of the document at key.
func (b *Batch) Delete(key Key) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpDelete, Document: Document{Key: key}})
	return b
}

// Len returns the number of staged mutations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.mutations)
}

// prepare validates the batch and stamps set documents with now.
func (b *Batch) prepare(now time.Time) ([]Mutation, error) {
	if b.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	prepared := make([]Mutation, 0, len(b.mutations))
	for i, m := range b.mutations {
		if err := m.Document.Key.Validate(); err != nil {
			return nil, fmt.Errorf("mutation %d (%s): %w", i, m.Op, err)
		}
		if m.Op == OpSet {
			if !json.Valid(m.Document.Data) {
				return nil, fmt.Errorf("mutation %d (%s): invalid JSON payload for %s", i, m.Op, m.Document.ID)
			}
			m.Document.UpdatedAt = now
		}
		prepared = append(prepared, m)
	}
	return prepared, nil
}

func prepareDocument(doc Document, now time.Time) (Document, error) {
	if err := doc.Key.Validate(); err != nil {
		return doc, err
	}
	if !json.Valid(doc.Data) {
		return doc, fmt.Errorf("invalid JSON payload for %s", doc.ID)
	}
	doc.UpdatedAt = now
	return doc, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
