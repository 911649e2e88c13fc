package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/schema"
)

func postsDef() *Definition {
	return &Definition{
		Strict: true,
		Schemas: []*schema.RowSchema{{
			Fields: []schema.FieldSpec{
				{Name: "title", Kind: schema.KindText, Required: true},
				{Name: "deletedAt", Kind: schema.KindInteger, Nullable: true},
			},
		}},
	}
}

func TestSetGetValid(t *testing.T) {
	doc := crdt.NewDoc("ws")
	tbl := New(doc, "posts", postsDef())

	require.NoError(t, tbl.Set(map[string]any{"id": "p1", "title": "Hello"}))

	r := tbl.Get("p1")
	require.Equal(t, StatusValid, r.Status)
	require.Equal(t, "Hello", r.Row["title"])
}

func TestSetStrictRejectsInvalid(t *testing.T) {
	doc := crdt.NewDoc("ws")
	tbl := New(doc, "posts", postsDef())

	err := tbl.Set(map[string]any{"id": "p1"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateNotFound(t *testing.T) {
	doc := crdt.NewDoc("ws")
	tbl := New(doc, "posts", postsDef())

	_, err := tbl.Update("missing", map[string]any{"title": "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	doc := crdt.NewDoc("ws")
	tbl := New(doc, "posts", postsDef())
	require.NoError(t, tbl.Set(map[string]any{"id": "p1", "title": "Hello"}))

	require.NoError(t, tbl.Delete("p1"))
	require.Len(t, tbl.GetAllActive(), 0)
	require.Len(t, tbl.GetAllValid(), 1)

	require.NoError(t, tbl.Restore("p1"))
	require.Len(t, tbl.GetAllActive(), 1)
}

func TestMigrationOnRead(t *testing.T) {
	doc := crdt.NewDoc("ws")
	v1 := &schema.RowSchema{Fields: []schema.FieldSpec{{Name: "name", Kind: schema.KindText, Required: true}}}
	v2 := &schema.RowSchema{Fields: []schema.FieldSpec{{Name: "title", Kind: schema.KindText, Required: true}}}
	def := &Definition{
		Schemas: []*schema.RowSchema{v1, v2},
		Migrate: func(raw map[string]any) map[string]any {
			out := map[string]any{"id": raw["id"]}
			if name, ok := raw["name"]; ok {
				out["title"] = name
			} else if t, ok := raw["title"]; ok {
				out["title"] = t
			}
			return out
		},
	}
	tbl := New(doc, "items", def)
	tbl.log.Set("old1", map[string]any{"id": "old1", "name": "legacy"})

	r := tbl.Get("old1")
	require.Equal(t, StatusValid, r.Status)
	require.Equal(t, "legacy", r.Row["title"])
}

func TestBatchCoalescesObserver(t *testing.T) {
	doc := crdt.NewDoc("ws")
	tbl := New(doc, "posts", postsDef())

	calls := 0
	var total int
	tbl.Observe(func(changes []Change) {
		calls++
		total += len(changes)
	})

	tbl.Batch(func(tb *Table) {
		_ = tb.Set(map[string]any{"id": "a", "title": "A"})
		_ = tb.Set(map[string]any{"id": "b", "title": "B"})
		_ = tb.Set(map[string]any{"id": "c", "title": "C"})
	})

	require.Equal(t, 1, calls)
	require.Equal(t, 3, total)
}

func TestCountAndClear(t *testing.T) {
	doc := crdt.NewDoc("ws")
	tbl := New(doc, "posts", postsDef())
	require.NoError(t, tbl.Set(map[string]any{"id": "a", "title": "A"}))
	require.NoError(t, tbl.Set(map[string]any{"id": "b", "title": "B"}))
	require.Equal(t, 2, tbl.Count())

	tbl.Clear()
	require.Equal(t, 0, tbl.Count())
}
