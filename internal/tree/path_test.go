package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"foo": map[string]any{
			"baz": map[string]any{
				"_id":  "theId",
				"quux": map[string]any{"murx": map[string]any{"id": "theId", "collection": "mlem"}},
			},
		},
		"bar": map[string]any{"blorp": []any{1.0, 2.0, 4.0}},
	}
}

func TestPath_Append(t *testing.T) {
	base := make(Path, 1, 8)
	base[0] = "a"
	left := base.Append("b")
	right := base.Append(3)

	assert.Equal(t, Path{"a", "b"}, left)
	assert.Equal(t, Path{"a", 3}, right)
	assert.Equal(t, Path{"a"}, base)
}

func TestPath_String(t *testing.T) {
	assert.Equal(t, "$", Path{}.String())
	assert.Equal(t, "$.foo.bar[2]", Path{"foo", "bar", 2}.String())
}

func TestGet(t *testing.T) {
	doc := sampleDoc()

	v, ok := Get(doc, Path{"bar", "blorp", 2})
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	v, ok = Get(doc, nil)
	require.True(t, ok)
	assert.Equal(t, doc, v)

	_, ok = Get(doc, Path{"bar", "blorp", 3})
	assert.False(t, ok)
	_, ok = Get(doc, Path{"bar", 0})
	assert.False(t, ok)
	_, ok = Get(doc, Path{"bar", "blorp", "x"})
	assert.False(t, ok)
}

func TestAncestors(t *testing.T) {
	doc := sampleDoc()
	path := Path{"foo", "baz", "quux", "murx"}

	anc := Ancestors(doc, path)
	require.Len(t, anc, 4)
	assert.Equal(t, doc, anc[0])
	id, ok := IdentityOf(anc[2])
	require.True(t, ok)
	assert.Equal(t, "theId", id)

	assert.Empty(t, Ancestors(doc, nil))
	assert.Len(t, Ancestors(doc, Path{"missing", "deeper"}), 1)
}

func TestSet(t *testing.T) {
	t.Run("object field", func(t *testing.T) {
		doc := sampleDoc()
		root, err := Set(doc, Path{"foo", "baz", "quux", "murx"}, "resolved")
		require.NoError(t, err)
		v, _ := Get(root, Path{"foo", "baz", "quux", "murx"})
		assert.Equal(t, "resolved", v)
	})

	t.Run("array element", func(t *testing.T) {
		doc := sampleDoc()
		root, err := Set(doc, Path{"bar", "blorp", 1}, map[string]any{"x": 1})
		require.NoError(t, err)
		v, _ := Get(root, Path{"bar", "blorp"})
		assert.Equal(t, []any{1.0, map[string]any{"x": 1}, 4.0}, v)
	})

	t.Run("empty path replaces root", func(t *testing.T) {
		root, err := Set(sampleDoc(), nil, []any{"new"})
		require.NoError(t, err)
		assert.Equal(t, []any{"new"}, root)
	})

	t.Run("invalid paths", func(t *testing.T) {
		doc := sampleDoc()
		_, err := Set(doc, Path{"nope", "x"}, 1)
		assert.Error(t, err)
		_, err = Set(doc, Path{"bar", "blorp", 9}, 1)
		assert.Error(t, err)
		_, err = Set(doc, Path{"bar", 0}, 1)
		assert.Error(t, err)
		_, err = Set(doc, Path{"bar", "blorp", 0, "x"}, 1)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}
