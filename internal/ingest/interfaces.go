package ingest

import (
	"context"

	"github.com/agentic-research/dbref/internal/store"
)

// Inserter is the write side of a document store.
type Inserter interface {
	InsertMany(ctx context.Context, collection string, docs []any) (store.InsertResult, error)
}
