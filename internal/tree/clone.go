package tree

import "bytes"

// Clone deep-copies the containers of a document. Scalars are immutable and
// shared, except []byte which is copied.
func Clone(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, c := range n {
			out[k] = Clone(c)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, c := range n {
			out[i] = Clone(c)
		}
		return out
	case []byte:
		return bytes.Clone(n)
	default:
		return v
	}
}

// StripIDs returns a copy of v with every "_id" field removed, at any depth.
// Non-container values are returned unchanged.
func StripIDs(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, c := range n {
			if k == IdentityField {
				continue
			}
			out[k] = StripIDs(c)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, c := range n {
			out[i] = StripIDs(c)
		}
		return out
	default:
		return v
	}
}
