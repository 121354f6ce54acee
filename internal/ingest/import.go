// Package ingest loads JSON documents from disk into a store and selects
// parts of documents with JSONPath.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/dbref/internal/tree"
	"github.com/sirupsen/logrus"
)

// ParseJSON decodes data into a document. The top level must be an array
// or an object.
func ParseJSON(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if !tree.IsInnerNode(doc) {
		return nil, fmt.Errorf("%w: top level is %T", tree.ErrInvalidDocument, doc)
	}
	return doc, nil
}

// LoadJSONFile reads and decodes the document stored at path.
func LoadJSONFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Import loads a .json file, or every .json file below a directory, into
// collection and returns the ids of the inserted documents. A file holding
// a top-level array contributes one document per element.
//
// Each file is inserted in its own transaction; an error stops the import
// and the ids inserted so far are returned with it.
func Import(ctx context.Context, st Inserter, collection, path string) ([]string, error) {
	files, err := jsonFiles(path)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		doc, err := LoadJSONFile(f)
		if err != nil {
			return ids, err
		}
		docs, ok := doc.([]any)
		if !ok {
			docs = []any{doc}
		}
		res, err := st.InsertMany(ctx, collection, docs)
		if err != nil {
			return ids, fmt.Errorf("import %s: %w", f, err)
		}
		logrus.WithFields(logrus.Fields{
			"collection": collection,
			"file":       f,
			"count":      len(res.IDs()),
		}).Debug("imported documents")
		ids = append(ids, res.IDs()...)
	}
	return ids, nil
}

// ImportFixtures loads a fixture directory into st. Each top-level
// "<name>.json" file or "<name>" directory becomes collection name; entries
// starting with a dot and other files are ignored. It returns the inserted
// ids per collection.
func ImportFixtures(ctx context.Context, st Inserter, dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", dir, err)
	}

	out := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		collection := name
		if !e.IsDir() {
			ext := filepath.Ext(name)
			if !strings.EqualFold(ext, ".json") {
				continue
			}
			collection = strings.TrimSuffix(name, ext)
		}
		ids, err := Import(ctx, st, collection, filepath.Join(dir, name))
		out[collection] = append(out[collection], ids...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// jsonFiles returns path itself when it is a file, or the .json files below
// it in lexical order.
func jsonFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	return files, nil
}
