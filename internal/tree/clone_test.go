package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClone_IsIndependent(t *testing.T) {
	doc := sampleDoc()
	cp := Clone(doc).(map[string]any)
	assert.Equal(t, doc, cp)

	cp["bar"].(map[string]any)["blorp"].([]any)[0] = "changed"
	cp["foo"].(map[string]any)["new"] = true

	assert.Equal(t, 1.0, doc["bar"].(map[string]any)["blorp"].([]any)[0])
	assert.NotContains(t, doc["foo"], "new")
}

func TestClone_CopiesBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	cp := Clone(b).([]byte)
	cp[0] = 9
	assert.Equal(t, byte(1), b[0])
}

func TestStripIDs(t *testing.T) {
	t.Run("ignores non-objects", func(t *testing.T) {
		for _, v := range []any{nil, "object", 1, 1.4567, "ಠ_ಠ"} {
			assert.Equal(t, v, StripIDs(v))
		}
	})

	t.Run("walks through arrays", func(t *testing.T) {
		in := []any{
			[]any{"( ͡° ͜ʖ ͡°)╭∩╮", "(╯ ͠° ͟ʖ ͡°)╯┻━┻"},
			map[string]any{"_id": "blablub"},
			[]any{map[string]any{"peter": "lustig"}, map[string]any{"_id": "florp", "quark": "fettarm"}},
		}
		want := []any{
			[]any{"( ͡° ͜ʖ ͡°)╭∩╮", "(╯ ͠° ͟ʖ ͡°)╯┻━┻"},
			map[string]any{},
			[]any{map[string]any{"peter": "lustig"}, map[string]any{"quark": "fettarm"}},
		}
		assert.Equal(t, want, StripIDs(in))
	})

	t.Run("walks through objects", func(t *testing.T) {
		in := map[string]any{
			"_id":         []any{"a", "b"},
			"diesenrödel": map[string]any{"_id": "blablub"},
			"houghjazz":   []any{map[string]any{"peter": "lustig"}, map[string]any{"_id": "florp", "quark": "fettarm"}},
		}
		want := map[string]any{
			"diesenrödel": map[string]any{},
			"houghjazz":   []any{map[string]any{"peter": "lustig"}, map[string]any{"quark": "fettarm"}},
		}
		assert.Equal(t, want, StripIDs(in))
		assert.Contains(t, in, "_id", "input must not be mutated")
	})
}
