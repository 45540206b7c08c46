package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[Key]Document
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Key]Document)}
}

// Get returns the document stored under key or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key Key) (Document, error) {
	if err := key.Validate(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// List returns the documents of a user's collection ordered by ID.
func (s *MemoryStore) List(_ context.Context, userID, collection string) ([]Document, error) {
	if err := (Key{UserID: userID, Collection: collection, ID: "*"}).Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0)
	for key, doc := range s.docs {
		if key.UserID == userID && key.Collection == collection {
			docs = append(docs, cloneDocument(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Put stores doc, stamping its update time, and returns the stored copy.
func (s *MemoryStore) Put(_ context.Context, doc Document) (Document, error) {
	doc, err := prepareDocument(doc, now())
	if err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.Key] = cloneDocument(doc)
	return doc, nil
}

// Delete removes the document under key or returns ErrNotFound.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[key]; !ok {
		return ErrNotFound
	}
	delete(s.docs, key)
	return nil
}

// Commit applies every mutation in batch or none of them.
func (s *MemoryStore) Commit(_ context.Context, batch *Batch) error {
	mutations, err := batch.prepare(now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range mutations {
		switch m.Op {
		case OpSet:
			s.docs[m.Document.Key] = cloneDocument(m.Document)
		case OpDelete:
			delete(s.docs, m.Document.Key)
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneDocument(doc Document) Document {
	doc.Data = append([]byte(nil), doc.Data...)
	return doc
}
