package tree

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Path locates a node from the document root. String keys address object
// fields, int keys address array elements.
type Path []any

// Append returns a new path with key added. The receiver is never shared
// with the result.
func (p Path) Append(key any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, key)
}

// Expr converts the path into a JSONPath expression rooted at $.
func (p Path) Expr() jp.Expr {
	x := jp.R()
	for _, k := range p {
		switch k := k.(type) {
		case int:
			x = x.N(k)
		case string:
			x = x.C(k)
		default:
			x = x.C(fmt.Sprint(k))
		}
	}
	return x
}

// String renders the path as JSONPath, e.g. "$.foo.bar[2]".
func (p Path) String() string {
	return p.Expr().String()
}

// Step returns the child of node addressed by key.
func Step(node, key any) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, false
		}
		v, ok := n[k]
		return v, ok
	case []any:
		i, ok := key.(int)
		if !ok || i < 0 || i >= len(n) {
			return nil, false
		}
		return n[i], true
	default:
		return nil, false
	}
}

// Get follows path from root.
func Get(root any, path Path) (any, bool) {
	node := root
	for _, k := range path {
		next, ok := Step(node, k)
		if !ok {
			return nil, false
		}
		node = next
	}
	return node, true
}

// Ancestors returns the nodes visited while following path from root,
// starting with root itself and excluding the node the path points at.
// The walk stops early if the path leaves the tree.
func Ancestors(root any, path Path) []any {
	out := make([]any, 0, len(path))
	node := root
	for _, k := range path {
		out = append(out, node)
		next, ok := Step(node, k)
		if !ok {
			break
		}
		node = next
	}
	return out
}

// Set writes value at path inside root and returns the (possibly new) root.
// An empty path replaces the root. Containers along the path are modified
// in place, so callers own root.
func Set(root any, path Path, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	parent, ok := Get(root, path[:len(path)-1])
	if !ok {
		return nil, fmt.Errorf("set %s: parent not found", path)
	}
	switch n := parent.(type) {
	case map[string]any:
		k, ok := path[len(path)-1].(string)
		if !ok {
			return nil, fmt.Errorf("set %s: object key must be a string", path)
		}
		n[k] = value
	case []any:
		i, ok := path[len(path)-1].(int)
		if !ok || i < 0 || i >= len(n) {
			return nil, fmt.Errorf("set %s: index out of range", path)
		}
		n[i] = value
	default:
		return nil, fmt.Errorf("set %s: %w", path, ErrInvalidDocument)
	}
	return root, nil
}
