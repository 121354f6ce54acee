// Package resolve replaces references embedded in a document tree with the
// entities they point to.
//
// A reference is any object carrying both a "collection" and an "id" field:
//
//	{"collection": "nameOfACollection", "id": "documentIdInStringForm"}
//
// Resolution is a breadth-first traversal. Each queue entry remembers its
// path from the root so the resolved entity can be spliced into the output
// at the right position, and so reference cycles can be recognised by
// looking at the ancestors on that path. Every distinct entity id is
// fetched at most once per call.
//
// The cycle guard only catches an entity that references one of its own
// ancestors on the same path. Reference graphs with cross-branch cycles
// will not terminate unless a depth bound (WithMaxDepth) or a hop limit
// (WithHopLimit) is supplied. That is the caller's responsibility.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentic-research/dbref/internal/tree"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidDocument is returned when the document is not an array or object.
	ErrInvalidDocument = tree.ErrInvalidDocument
	// ErrReferenceNotFound must be wrapped by fetchers when no entity exists
	// for a (collection, id) pair.
	ErrReferenceNotFound = errors.New("reference not found")
	// ErrInvalidOption is returned by New for out-of-range options.
	ErrInvalidOption = errors.New("invalid option")
	// ErrHopLimit is returned when a call exceeds WithHopLimit.
	ErrHopLimit = errors.New("hop limit exceeded")
)

// Fetcher loads the entity a reference points to.
type Fetcher interface {
	Fetch(ctx context.Context, collection, id string) (any, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, collection, id string) (any, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context, collection, id string) (any, error) {
	return f(ctx, collection, id)
}

// Stats describes what a single Resolve call did.
type Stats struct {
	Fetches           int // fetcher invocations
	MemoHits          int // references served from the per-call memo
	Substitutions     int // references replaced in the output
	RefusedCollection int // references outside the collection allow-list
	RefusedCycle      int // references pointing at one of their ancestors
	Pruned            int // queue entries dropped by the depth bound
}

// Resolver resolves references against a Fetcher. A Resolver holds no
// per-call state and is safe for concurrent use.
type Resolver struct {
	fetcher Fetcher
	cfg     config
}

// New creates a Resolver.
func New(f Fetcher, opts ...Option) (*Resolver, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil fetcher", ErrInvalidOption)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	return &Resolver{fetcher: f, cfg: cfg}, nil
}

// Resolve is a convenience wrapper around New and (*Resolver).Resolve.
func Resolve(ctx context.Context, f Fetcher, document any, opts ...Option) (any, error) {
	r, err := New(f, opts...)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, document)
}

// Resolve returns a copy of document with every admitted reference replaced
// by its entity. The input is never modified.
//
// The first fetch error aborts the call and is returned as-is; there is no
// partial result.
func (r *Resolver) Resolve(ctx context.Context, document any) (any, error) {
	out, _, err := r.ResolveWithStats(ctx, document)
	return out, err
}

type entry struct {
	node  any
	depth int
	path  tree.Path
}

// ResolveWithStats is Resolve and additionally reports traversal counters.
func (r *Resolver) ResolveWithStats(ctx context.Context, document any) (any, Stats, error) {
	var stats Stats
	if tree.IsLeaf(document) {
		return nil, stats, fmt.Errorf("%w: got %T", ErrInvalidDocument, document)
	}

	queue := []entry{{node: document}}
	memo := make(map[string]any)
	result := tree.Clone(document)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		next := queue[0]
		queue[0] = entry{}
		queue = queue[1:]

		if r.cfg.bounded() && next.depth >= r.cfg.maxDepth {
			stats.Pruned++
			continue
		}

		node, depth := next.node, next.depth
		if ref, ok := tree.AsReference(node); ok && r.admit(result, next.path, ref, &stats) {
			if r.cfg.hopLimit > 0 && stats.Substitutions >= r.cfg.hopLimit {
				return nil, stats, fmt.Errorf("%w: more than %d substitutions", ErrHopLimit, r.cfg.hopLimit)
			}
			entity, err := r.lookup(ctx, memo, ref, next.path, &stats)
			if err != nil {
				return nil, stats, err
			}
			// Every splice gets its own copy: later substitutions below this
			// path must not leak into other paths sharing the same entity.
			result, err = tree.Set(result, next.path, tree.Clone(entity))
			if err != nil {
				return nil, stats, err
			}
			stats.Substitutions++
			node = entity
			depth++
		}

		children, err := tree.Children(node)
		if err != nil {
			return nil, stats, err
		}
		for _, c := range children {
			queue = append(queue, entry{
				node:  c.Node,
				depth: depth,
				path:  next.path.Append(c.Key),
			})
		}
	}
	return result, stats, nil
}

// admit decides whether the reference at path should be resolved. It walks
// the output tree from the root along path and refuses if any ancestor is
// the very entity being referenced.
func (r *Resolver) admit(result any, path tree.Path, ref tree.Ref, stats *Stats) bool {
	if !r.cfg.allows(ref.Collection) {
		stats.RefusedCollection++
		r.trace(ref, path, "skipping reference: collection not allowed")
		return false
	}
	for _, ancestor := range tree.Ancestors(result, path) {
		if id, ok := tree.IdentityOf(ancestor); ok && id == ref.ID {
			stats.RefusedCycle++
			r.trace(ref, path, "skipping reference: cycle")
			return false
		}
	}
	return true
}

func (r *Resolver) lookup(ctx context.Context, memo map[string]any, ref tree.Ref, path tree.Path, stats *Stats) (any, error) {
	if entity, ok := memo[ref.ID]; ok {
		stats.MemoHits++
		return entity, nil
	}
	r.trace(ref, path, "fetching reference")
	entity, err := r.fetcher.Fetch(ctx, ref.Collection, ref.ID)
	stats.Fetches++
	if err != nil {
		return nil, err
	}
	memo[ref.ID] = entity
	return entity, nil
}

// trace logs msg at debug level. Rendering the path is skipped unless debug
// logging is on.
func (r *Resolver) trace(ref tree.Ref, path tree.Path, msg string) {
	if !r.cfg.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	r.cfg.log.WithFields(logrus.Fields{
		"collection": ref.Collection,
		"id":         ref.ID,
		"path":       path.String(),
	}).Debug(msg)
}
