package awareness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhq/workspace/internal/schema"
)

func TestSetLocalIncludesSelfInGetAll(t *testing.T) {
	a := New("me", nil)
	a.SetLocal(map[string]any{"cursor": 3})

	all := a.GetAll()
	require.Contains(t, all, "me")
	require.Equal(t, 3, all["me"]["cursor"])
}

func TestApplyRemoteAddsAndRemoves(t *testing.T) {
	var changes []Change
	a := New("me", nil)
	a.Observe(func(cs []Change) { changes = append(changes, cs...) })

	a.ApplyRemote("peer", map[string]any{"cursor": 1})
	require.Contains(t, a.GetAll(), "peer")

	a.RemoveRemote("peer")
	require.NotContains(t, a.GetAll(), "peer")

	require.Equal(t, Added, changes[0].Kind)
	require.Equal(t, Removed, changes[len(changes)-1].Kind)
}

func TestInvalidPeerStateOmittedFromGetAll(t *testing.T) {
	fields := &schema.RowSchema{Fields: []schema.FieldSpec{
		{Name: "cursor", Kind: schema.KindInteger, Required: true},
	}}
	a := New("me", fields)

	a.ApplyRemote("bad", map[string]any{"cursor": "not-a-number"})
	require.NotContains(t, a.GetAll(), "bad")

	a.ApplyRemote("good", map[string]any{"cursor": 5})
	require.Contains(t, a.GetAll(), "good")
}
