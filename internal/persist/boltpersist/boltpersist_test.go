package boltpersist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
)

func TestPersistsAndReloadsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	doc1 := crdt.NewDoc("ws-persist")
	log1 := kv.New(doc1, "dyn:tables")

	ext, err := New(dir, "ws-persist", doc1, []string{"dyn:tables"}, nil)
	require.NoError(t, err)
	require.NoError(t, ext.WhenReady(ctx))

	log1.Set("posts", map[string]any{"id": "posts", "name": "Posts"})

	require.NoError(t, ext.Destroy(ctx))

	doc2 := crdt.NewDoc("ws-persist-reload")
	log2 := kv.New(doc2, "dyn:tables")
	ext2, err := New(dir, "ws-persist", doc2, []string{"dyn:tables"}, nil)
	require.NoError(t, err)
	require.NoError(t, ext2.WhenReady(ctx))
	defer ext2.Destroy(ctx)

	v, ok := log2.Get("posts")
	require.True(t, ok)
	m := v.(map[string]any)
	require.Equal(t, "Posts", m["name"])
}
