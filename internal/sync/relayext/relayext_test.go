package relayext

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/crdt"
	"github.com/loomhq/workspace/internal/kv"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newBootstrapped(t *testing.T) (*Extension, *kv.Log) {
	t.Helper()
	doc := crdt.NewDoc("ws-relay")
	log := kv.New(doc, "dyn:tables")

	ext := &Extension{
		cfg: Config{
			NodeID:    "node-1",
			BindAddr:  fmt.Sprintf("127.0.0.1:%d", freePort(t)),
			DataDir:   t.TempDir(),
			Bootstrap: true,
			LogNames:  []string{"dyn:tables"},
		},
		logs: map[string]*kv.Log{"dyn:tables": log},
		fsm:  newFSM(map[string]*kv.Log{"dyn:tables": log}),
	}
	require.NoError(t, ext.WhenReady(context.Background()))

	require.Eventually(t, ext.IsLeader, 5*time.Second, 20*time.Millisecond)
	return ext, log
}

func TestProposeReplicatesIntoLocalLog(t *testing.T) {
	ext, log := newBootstrapped(t)
	defer ext.Destroy(context.Background())

	require.NoError(t, ext.Propose("dyn:tables", "posts", map[string]any{"id": "posts", "name": "Posts"}))

	v, ok := log.Get("posts")
	require.True(t, ok)
	m := v.(map[string]any)
	require.Equal(t, "Posts", m["name"])
}

func TestProposeDeleteTombstones(t *testing.T) {
	ext, log := newBootstrapped(t)
	defer ext.Destroy(context.Background())

	require.NoError(t, ext.Propose("dyn:tables", "posts", map[string]any{"id": "posts"}))
	require.True(t, log.Has("posts"))

	require.NoError(t, ext.ProposeDelete("dyn:tables", "posts"))
	require.False(t, log.Has("posts"))
}

func TestProposeUnknownLogErrors(t *testing.T) {
	ext, _ := newBootstrapped(t)
	defer ext.Destroy(context.Background())

	err := ext.Propose("dyn:no-such-log", "x", 1)
	require.Error(t, err)
}

func TestWaitForLeaderReturnsOnceElected(t *testing.T) {
	ext, _ := newBootstrapped(t)
	defer ext.Destroy(context.Background())

	require.NoError(t, ext.WaitForLeader(context.Background()))
}

func TestWaitForLeaderTimesOutWithoutACluster(t *testing.T) {
	ext := &Extension{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.Error(t, ext.WaitForLeader(ctx))
}
