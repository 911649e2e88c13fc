package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/dynamic"
)

var errBoom = errors.New("boom")

// orderMu guards the shared order slice: WhenReady runs extensions
// concurrently.
var orderMu sync.Mutex

type fakeExtension struct {
	key       string
	readyErr  error
	destroyed bool
	order     *[]string
}

func (f *fakeExtension) Key() string { return f.key }
func (f *fakeExtension) WhenReady(ctx context.Context) error {
	orderMu.Lock()
	*f.order = append(*f.order, "ready:"+f.key)
	orderMu.Unlock()
	return f.readyErr
}
func (f *fakeExtension) Destroy(ctx context.Context) error {
	f.destroyed = true
	*f.order = append(*f.order, "destroy:"+f.key)
	return nil
}

func TestClientLifecycleHappyPath(t *testing.T) {
	var order []string
	c := New(Definition{ID: "ws-1"}).
		WithExtension(func(c *Client) Extension { return &fakeExtension{key: "a", order: &order} }).
		WithExtension(func(c *Client) Extension { return &fakeExtension{key: "b", order: &order} }).
		Build()

	require.NoError(t, c.WhenReady(context.Background()))
	require.NoError(t, c.Destroy(context.Background()))
	require.True(t, c.Destroyed())

	// Every extension becomes ready (concurrently, so in no fixed
	// order); destroy order is the reverse of registration order.
	require.Len(t, order, 4)
	require.ElementsMatch(t, []string{"ready:a", "ready:b"}, order[:2])
	require.Equal(t, []string{"destroy:b", "destroy:a"}, order[2:])
}

func TestClientDuplicateExtensionKeyPanics(t *testing.T) {
	c := New(Definition{ID: "ws-2"}).
		WithExtension(func(c *Client) Extension { return &fakeExtension{key: "dup", order: &[]string{}} }).
		WithExtension(func(c *Client) Extension { return &fakeExtension{key: "dup", order: &[]string{}} })

	require.Panics(t, func() { c.Build() })
}

func TestClientActionsFactory(t *testing.T) {
	type actions struct{ TableCount func() int }
	c := New(Definition{ID: "ws-3"}).
		WithActions(func(ws *dynamic.Workspace) any {
			return actions{TableCount: func() int { return len(ws.Tables.List()) }}
		}).
		Build()

	ws := c.Workspace()
	ws.Tables.Create("t1", "T1", "", "")
	a := c.Actions().(actions)
	require.Equal(t, 1, a.TableCount())
}

func TestWhenReadyPropagatesExtensionError(t *testing.T) {
	var order []string
	c := New(Definition{ID: "ws-4"}).
		WithExtension(func(c *Client) Extension {
			return &fakeExtension{key: "broken", readyErr: errBoom, order: &order}
		}).
		Build()

	err := c.WhenReady(context.Background())
	require.ErrorIs(t, err, errBoom)
}
