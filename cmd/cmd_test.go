package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeJSONFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func seed(t *testing.T) (db string, dir string) {
	t.Helper()
	dir = t.TempDir()
	db = filepath.Join(dir, "cli.db")

	users := writeJSONFile(t, dir, "users.json", `[
		{"_id": "u1", "name": "ada"},
		{"_id": "u2", "name": "grace", "mentor": {"collection": "users", "id": "u1"}}
	]`)
	posts := writeJSONFile(t, dir, "posts.json", `{
		"_id": "p1",
		"title": "<hello>",
		"author": {"collection": "users", "id": "u2"}
	}`)

	out, err := run(t, "--db", db, "import", "users", users)
	require.NoError(t, err)
	assert.Equal(t, "u1\nu2\n", out)
	_, err = run(t, "--db", db, "import", "posts", posts)
	require.NoError(t, err)
	return db, dir
}

func TestCLI_Collections(t *testing.T) {
	db, _ := seed(t)
	out, err := run(t, "--db", db, "collections")
	require.NoError(t, err)
	assert.Equal(t, "posts\nusers\n", out)
}

func TestCLI_Resolve(t *testing.T) {
	db, _ := seed(t)

	t.Run("by id, unbounded", func(t *testing.T) {
		out, err := run(t, "--db", db, "resolve", "posts", "p1")
		require.NoError(t, err)
		doc := decode(t, out).(map[string]any)
		author := doc["author"].(map[string]any)
		assert.Equal(t, "grace", author["name"])
		assert.Equal(t, "ada", author["mentor"].(map[string]any)["name"])
		assert.Contains(t, out, "<hello>")
	})

	t.Run("first document when no id", func(t *testing.T) {
		out, err := run(t, "--db", db, "resolve", "users")
		require.NoError(t, err)
		assert.Equal(t, "ada", decode(t, out).(map[string]any)["name"])
	})

	t.Run("max depth", func(t *testing.T) {
		out, err := run(t, "--db", db, "resolve", "posts", "p1", "--max-depth", "1")
		require.NoError(t, err)
		author := decode(t, out).(map[string]any)["author"].(map[string]any)
		assert.Equal(t, map[string]any{"collection": "users", "id": "u1"}, author["mentor"])
	})

	t.Run("empty allow-list", func(t *testing.T) {
		out, err := run(t, "--db", db, "resolve", "posts", "p1", "--collections=")
		require.NoError(t, err)
		author := decode(t, out).(map[string]any)["author"]
		assert.Equal(t, map[string]any{"collection": "users", "id": "u2"}, author)
	})

	t.Run("all with select and strip-ids", func(t *testing.T) {
		out, err := run(t, "--db", db, "resolve", "users", "--all", "--strip-ids", "--select", "$[*].mentor")
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"name": "ada"}}, decode(t, out))
	})

	t.Run("hop limit", func(t *testing.T) {
		_, err := run(t, "--db", db, "resolve", "posts", "p1", "--hop-limit", "1")
		assert.ErrorContains(t, err, "hop limit exceeded")
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := run(t, "--db", db, "resolve", "posts", "nope")
		assert.ErrorContains(t, err, "could not be resolved")
	})

	t.Run("all with id", func(t *testing.T) {
		_, err := run(t, "--db", db, "resolve", "posts", "p1", "--all")
		assert.Error(t, err)
	})
}

func TestCLI_ResolveFile(t *testing.T) {
	db, dir := seed(t)
	p := writeJSONFile(t, dir, "query.json", `{"who": [{"collection": "users", "id": "u1"}, {"collection": "posts", "id": "p1"}]}`)

	out, err := run(t, "--db", db, "resolve-file", p, "--collections", "users")
	require.NoError(t, err)
	who := decode(t, out).(map[string]any)["who"].([]any)
	assert.Equal(t, "ada", who[0].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"collection": "posts", "id": "p1"}, who[1])
}

func TestCLI_ResolveFileFixtures(t *testing.T) {
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "fixtures")
	require.NoError(t, os.Mkdir(fixtures, 0o755))
	writeJSONFile(t, fixtures, "users.json", `[
		{"_id": "u1", "name": "ada"},
		{"_id": "u2", "name": "grace", "mentor": {"collection": "users", "id": "u1"}}
	]`)
	p := writeJSONFile(t, dir, "query.json", `{"who": {"collection": "users", "id": "u2"}}`)
	db := filepath.Join(dir, "never.db")

	out, err := run(t, "--db", db, "resolve-file", p, "--fixtures", fixtures, "--strip-ids")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"who": map[string]any{"name": "grace", "mentor": map[string]any{"name": "ada"}},
	}, decode(t, out))
	assert.NoFileExists(t, db)

	_, err = run(t, "--db", db, "resolve-file", p, "--fixtures", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCLI_ReadCommandsDoNotCreateDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "typo.db")
	p := writeJSONFile(t, dir, "query.json", `{"r": {"collection": "users", "id": "u1"}}`)

	for _, args := range [][]string{
		{"--db", db, "collections"},
		{"--db", db, "resolve", "users"},
		{"--db", db, "resolve-file", p},
	} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, os.ErrNotExist, args)
		assert.NoFileExists(t, db, args)
	}
}

func TestCLI_ConfigFileAndEnv(t *testing.T) {
	db, dir := seed(t)
	cfg := writeJSONFile(t, dir, "dbref.hcl", `
store {
  path      = "`+filepath.ToSlash(db)+`"
  read_only = true
}
resolve {
  max_depth = 1
}
`)

	out, err := run(t, "--config", cfg, "resolve", "posts", "p1")
	require.NoError(t, err)
	author := decode(t, out).(map[string]any)["author"].(map[string]any)
	assert.Equal(t, "grace", author["name"])
	assert.Equal(t, map[string]any{"collection": "users", "id": "u1"}, author["mentor"])

	t.Setenv("DBREF_MAX_DEPTH", "-1")
	out, err = run(t, "--config", cfg, "resolve", "posts", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, `"ada"`)

	_, err = run(t, "--config", cfg, "import", "users", filepath.Join(dir, "users.json"))
	assert.ErrorContains(t, err, "read-only")
}

func TestCLI_Errors(t *testing.T) {
	_, err := run(t, "resolve")
	assert.Error(t, err)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.hcl"), "collections")
	assert.Error(t, err)

	_, err = run(t, "--db", filepath.Join(t.TempDir(), "x.db"), "--log-format", "xml", "collections")
	assert.ErrorContains(t, err, "log format")

	dir := t.TempDir()
	bad := writeJSONFile(t, dir, "bad.json", `"scalar"`)
	_, err = run(t, "--db", filepath.Join(dir, "x.db"), "resolve-file", bad)
	assert.True(t, err != nil && strings.Contains(err.Error(), "invalid document"))
}
