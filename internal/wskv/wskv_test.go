package wskv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/schema"
)

func TestSetGetDeclaredKey(t *testing.T) {
	doc := crdt.NewDoc("ws")
	st := New(doc, "settings", Definition{
		"theme": {Name: "theme", Kind: schema.KindSelect, Enum: []string{"light", "dark"}},
	})

	require.NoError(t, st.Set("theme", "dark"))
	v, ok := st.Get("theme")
	require.True(t, ok)
	require.Equal(t, "dark", v)
}

func TestSetUnknownKeyFails(t *testing.T) {
	doc := crdt.NewDoc("ws")
	st := New(doc, "settings", Definition{})
	err := st.Set("nope", "x")
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestSetInvalidValueFails(t *testing.T) {
	doc := crdt.NewDoc("ws")
	st := New(doc, "settings", Definition{
		"theme": {Name: "theme", Kind: schema.KindSelect, Enum: []string{"light", "dark"}},
	})
	err := st.Set("theme", "neon")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestBatchCoalesces(t *testing.T) {
	doc := crdt.NewDoc("ws")
	st := New(doc, "settings", Definition{
		"a": {Name: "a", Kind: schema.KindText},
		"b": {Name: "b", Kind: schema.KindText},
	})
	calls := 0
	var total int
	st.Observe(func(d []kv.Delta) {
		calls++
		total += len(d)
	})

	st.Batch(func(s *Store) {
		_ = s.Set("a", "1")
		_ = s.Set("b", "2")
	})

	require.Equal(t, 1, calls)
	require.Equal(t, 2, total)
}
