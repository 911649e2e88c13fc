package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadListsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static-workspaces.json")
	writeRegistry(t, path, `{
		"workspaces": [
			{"id": "ws-main", "config_path": "/etc/workspace/ws-main.yaml"},
			{"id": "ws-scratch", "config_path": "/etc/workspace/ws-scratch.yaml"}
		]
	}`)

	reg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reg.Entries(), 2)

	e, ok := reg.Get("ws-main")
	require.True(t, ok)
	require.Equal(t, "/etc/workspace/ws-main.yaml", e.ConfigPath)

	_, ok = reg.Get("ws-nope")
	require.False(t, ok)
}

func TestLoadMissingEntryIDErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static-workspaces.json")
	writeRegistry(t, path, `{"workspaces": [{"config_path": "/etc/x.yaml"}]}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static-workspaces.json")
	writeRegistry(t, path, `{"workspaces": [{"id": "ws-main", "config_path": "/a.yaml"}]}`)

	reg, err := Load(path)
	require.NoError(t, err)

	changed := make(chan []Entry, 4)
	unobserve := reg.Observe(func(entries []Entry) { changed <- entries })
	defer unobserve()

	stop, err := reg.Watch()
	require.NoError(t, err)
	defer stop()

	writeRegistry(t, path, `{"workspaces": [
		{"id": "ws-main", "config_path": "/a.yaml"},
		{"id": "ws-second", "config_path": "/b.yaml"}
	]}`)

	select {
	case entries := <-changed:
		require.Len(t, entries, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for registry reload")
	}

	_, ok := reg.Get("ws-second")
	require.True(t, ok)
}
