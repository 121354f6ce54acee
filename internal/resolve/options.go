package resolve

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Unbounded disables the resolution depth bound.
const Unbounded = -1

type config struct {
	collections map[string]struct{} // nil: every collection
	maxDepth    int
	hopLimit    int
	log         *logrus.Entry
	err         error
}

func defaultConfig() config {
	return config{
		maxDepth: Unbounded,
		log:      logrus.NewEntry(logrus.StandardLogger()).WithField("component", "resolve"),
	}
}

// Option configures a Resolver.
type Option func(*config)

// WithCollections restricts resolution to references pointing at one of
// names. A nil slice allows every collection; an empty, non-nil slice
// resolves nothing.
func WithCollections(names []string) Option {
	return func(c *config) {
		if names == nil {
			c.collections = nil
			return
		}
		c.collections = make(map[string]struct{}, len(names))
		for _, n := range names {
			c.collections[n] = struct{}{}
		}
	}
}

// WithMaxDepth bounds the number of resolution hops along any path from
// the root. Depth counts substituted references, not nesting levels.
// Pass Unbounded to lift the bound.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n < Unbounded {
			c.err = fmt.Errorf("%w: max depth %d", ErrInvalidOption, n)
			return
		}
		c.maxDepth = n
	}
}

// WithHopLimit caps the total number of substitutions one call may perform.
// Zero disables the cap. This is a hard ceiling for callers that cannot
// rule out cross-branch cycles in an unbounded resolve.
func WithHopLimit(n int) Option {
	return func(c *config) {
		if n < 0 {
			c.err = fmt.Errorf("%w: hop limit %d", ErrInvalidOption, n)
			return
		}
		c.hopLimit = n
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *logrus.Entry) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

func (c *config) bounded() bool {
	return c.maxDepth != Unbounded
}

func (c *config) allows(collection string) bool {
	if c.collections == nil {
		return true
	}
	_, ok := c.collections[collection]
	return ok
}
