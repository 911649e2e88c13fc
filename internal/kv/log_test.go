package kv

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
)

func TestSetGetDelete(t *testing.T) {
	doc := crdt.NewDoc("ws")
	log := New(doc, "kv")

	log.Set("a", "1")
	v, ok := log.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	log.Set("a", "2")
	v, ok = log.Get("a")
	require.True(t, ok)
	require.Equal(t, "2", v)

	log.Delete("a")
	_, ok = log.Get("a")
	require.False(t, ok)
}

func TestEntriesInsertionOrder(t *testing.T) {
	doc := crdt.NewDoc("ws")
	log := New(doc, "kv")

	log.Set("b", 1)
	log.Set("a", 2)
	log.Set("c", 3)

	entries := log.Entries()
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	require.Equal(t, []string{"b", "a", "c"}, keys)
}

func TestObserveCoalescesBatch(t *testing.T) {
	doc := crdt.NewDoc("ws")
	log := New(doc, "kv")

	calls := 0
	var lastDeltas []Delta
	log.Observe(func(d []Delta) {
		calls++
		lastDeltas = d
	})

	// Three sets inside a single externally-owned transaction commit
	// once, so observers hear about them in one notification.
	doc.Transact("local", func(tx *crdt.Tx) {
		log.Set("x", 1)
		log.Set("y", 2)
		log.Set("z", 3)
	})
	require.Equal(t, 1, calls)
	require.Len(t, lastDeltas, 3)
	require.Equal(t, Add, lastDeltas[0].Kind)

	// A lone Set is its own transaction: exactly one more notify.
	log.Set("w", 4)
	require.Equal(t, 2, calls)
	require.Len(t, lastDeltas, 1)
	require.Equal(t, Add, lastDeltas[0].Kind)
}

func TestAppendDeleteCycleBoundedSize(t *testing.T) {
	doc := crdt.NewDoc("ws")
	log := New(doc, "kv", WithGCEvery(1))

	var sizes []int
	for cycle := 0; cycle < 5; cycle++ {
		for i := 0; i < 1000; i++ {
			key := fmt.Sprintf("k%d", i)
			log.Set(key, i)
			log.Delete(key)
		}
		sizes = append(sizes, log.arr.RawLen())
	}

	// Raw size should not grow unboundedly across cycles once GC has run.
	for i := 1; i < len(sizes); i++ {
		require.LessOrEqual(t, sizes[i], sizes[0]+8, "cycle %d size %d vs first cycle %d", i, sizes[i], sizes[0])
	}
}

func TestApplyRemoteConvergence(t *testing.T) {
	// Two independent logs receiving the same set of timestamped
	// entries in different orders must converge to the same view.
	ops := []Entry{
		{Key: "a", Val: "v1", Ts: 10},
		{Key: "a", Val: "v2", Ts: 20},
		{Key: "b", Val: "v1", Ts: 15},
		{Key: "a", Val: "v3", Ts: 5}, // older, should lose
	}

	doc1 := crdt.NewDoc("ws1")
	log1 := New(doc1, "kv")
	log1.ApplyRemote([]Entry{ops[0], ops[1], ops[2], ops[3]})

	doc2 := crdt.NewDoc("ws2")
	log2 := New(doc2, "kv")
	log2.ApplyRemote([]Entry{ops[3], ops[2], ops[1], ops[0]})

	v1, _ := log1.Get("a")
	v2, _ := log2.Get("a")
	require.Equal(t, v1, v2)
	require.Equal(t, "v2", v1)

	b1, _ := log1.Get("b")
	b2, _ := log2.Get("b")
	require.Equal(t, b1, b2)
}

func TestDeleteNonExistentIsNoop(t *testing.T) {
	doc := crdt.NewDoc("ws")
	log := New(doc, "kv")
	before := log.arr.RawLen()
	log.Delete("missing")
	require.Equal(t, before, log.arr.RawLen())
}
