package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/dbref/internal/tree"
	"github.com/google/uuid"
)

type docKey struct {
	collection string
	id         string
}

// MemoryStore is an in-process document store. It implements
// resolve.Fetcher and counts fetches per document. resolve-file --fixtures
// resolves against one, and tests use it to observe fetch counts.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[docKey]any

	// Roaring bitmap index: collection → set of internal document IDs.
	byCollection map[string]*roaring.Bitmap
	keyIntID     map[docKey]uint32
	nextIntID    uint32

	calls map[docKey]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:         make(map[docKey]any),
		byCollection: make(map[string]*roaring.Bitmap),
		keyIntID:     make(map[docKey]uint32),
		calls:        make(map[docKey]int),
	}
}

// Put stores doc under (collection, id), replacing any previous document.
func (s *MemoryStore) Put(collection, id string, doc any) {
	k := docKey{collection: collection, id: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[k] = doc
	s.index(k)
}

// Insert stores an object under its "_id", assigning a fresh UUID when it
// has none, and returns the id. The stored copy carries the id.
func (s *MemoryStore) Insert(collection string, doc map[string]any) string {
	id, ok := tree.IdentityOf(doc)
	if !ok {
		id = uuid.NewString()
	}
	stored := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[tree.IdentityField] = id
	s.Put(collection, id, stored)
	return id
}

// InsertMany implements ingest's Inserter with the same rules as
// SQLiteStore.InsertMany: objects only, and either all documents are stored
// or none.
func (s *MemoryStore) InsertMany(ctx context.Context, collection string, docs []any) (InsertResult, error) {
	var res InsertResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	objs := make([]map[string]any, 0, len(docs))
	for i, d := range docs {
		obj, ok := d.(map[string]any)
		if !ok {
			return res, fmt.Errorf("insert %s[%d]: %w: documents must be objects, got %T", collection, i, tree.ErrInvalidDocument, d)
		}
		objs = append(objs, obj)
	}
	for _, obj := range objs {
		res.ids = append(res.ids, s.Insert(collection, obj))
	}
	return res, nil
}

// index assigns an internal bitmap ID and registers k in its collection.
// Must be called with s.mu held.
func (s *MemoryStore) index(k docKey) {
	intID, ok := s.keyIntID[k]
	if !ok {
		intID = s.nextIntID
		s.nextIntID++
		s.keyIntID[k] = intID
	}
	bm, exists := s.byCollection[k.collection]
	if !exists {
		bm = roaring.New()
		s.byCollection[k.collection] = bm
	}
	bm.Add(intID)
}

// Fetch implements resolve.Fetcher. The returned document is a copy.
func (s *MemoryStore) Fetch(ctx context.Context, collection, id string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := docKey{collection: collection, id: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[k]++
	doc, ok := s.docs[k]
	if !ok {
		return nil, fmt.Errorf("referenced '%s' '%s' could not be resolved: %w", collection, id, ErrNotFound)
	}
	return tree.Clone(doc), nil
}

// Calls returns how many times Fetch was asked for (collection, id).
func (s *MemoryStore) Calls(collection, id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[docKey{collection: collection, id: id}]
}

// TotalCalls returns the number of Fetch calls across all documents.
func (s *MemoryStore) TotalCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Count returns the number of documents in collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.byCollection[collection]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}
