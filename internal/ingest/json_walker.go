package ingest

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// JSONWalker selects nodes of decoded JSON documents using JSONPath.
type JSONWalker struct{}

func NewJSONWalker() *JSONWalker {
	return &JSONWalker{}
}

// Query executes selector against root and returns the matched nodes in
// document order.
func (w *JSONWalker) Query(root any, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	results := x.Get(root)
	if results == nil {
		results = []any{}
	}
	return results, nil
}

// Select runs selector against root with a JSONWalker.
func Select(root any, selector string) ([]any, error) {
	return NewJSONWalker().Query(root, selector)
}
