// Package tree classifies and navigates generic document trees: the
// map[string]any / []any shape produced by encoding/json.
//
// Throughout this package a document is treated as a tree. Sequences and
// mappings are inner nodes, everything else is a leaf.
package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Field names recognised by the walker.
const (
	CollectionField = "collection"
	IDField         = "id"
	IdentityField   = "_id"
)

// ErrInvalidDocument is returned when a leaf is given where an inner node
// (array or object) is required.
var ErrInvalidDocument = errors.New("invalid document: expected an array or object")

// Kind is the classification of a single node.
type Kind int

const (
	Leaf Kind = iota
	Sequence
	Mapping
	Reference
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	case Reference:
		return "reference"
	default:
		return "leaf"
	}
}

// Classify determines the kind of v. A mapping carrying both a "collection"
// and an "id" field is a Reference, whatever other fields it has.
func Classify(v any) Kind {
	switch n := v.(type) {
	case []any:
		return Sequence
	case map[string]any:
		_, hasCollection := n[CollectionField]
		_, hasID := n[IDField]
		if hasCollection && hasID {
			return Reference
		}
		return Mapping
	default:
		return Leaf
	}
}

// IsInnerNode reports whether v is an array or an object.
func IsInnerNode(v any) bool {
	return Classify(v) != Leaf
}

// IsLeaf is the complement of IsInnerNode.
func IsLeaf(v any) bool {
	return Classify(v) == Leaf
}

// IsReference reports whether v is an object exposing both a collection
// and an id field.
func IsReference(v any) bool {
	return Classify(v) == Reference
}

// Ref is the decoded form of a Reference node.
type Ref struct {
	Collection string
	ID         string
}

// AsReference extracts the collection and id of a Reference node.
// Non-string values are rendered with fmt.Sprint so ids compare by value.
func AsReference(v any) (Ref, bool) {
	if Classify(v) != Reference {
		return Ref{}, false
	}
	m := v.(map[string]any)
	return Ref{
		Collection: scalarString(m[CollectionField]),
		ID:         scalarString(m[IDField]),
	}, true
}

// IdentityOf returns the string form of the node's "_id" field, if any.
func IdentityOf(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := m[IdentityField]
	if !ok || id == nil {
		return "", false
	}
	return scalarString(id), true
}

func scalarString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Child is a direct inner-node child together with the key that addresses
// it from its parent: an int for arrays, a string for objects.
type Child struct {
	Key  any
	Node any
}

// Children returns the child nodes of an inner node that are themselves
// inner nodes. Leaf children are skipped since they can't hold references.
// Object children are returned in key order.
func Children(v any) ([]Child, error) {
	switch n := v.(type) {
	case []any:
		var out []Child
		for i, c := range n {
			if IsInnerNode(c) {
				out = append(out, Child{Key: i, Node: c})
			}
		}
		return out, nil
	case map[string]any:
		var out []Child
		for _, k := range slices.Sorted(maps.Keys(n)) {
			if c := n[k]; IsInnerNode(c) {
				out = append(out, Child{Key: k, Node: c})
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T has no children", ErrInvalidDocument, v)
	}
}
