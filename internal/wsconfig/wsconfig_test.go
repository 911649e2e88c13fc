package wsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: ws-main
data_dir: /var/lib/workspace
bind_addr: 127.0.0.1:7100
bootstrap: true
extensions:
  - persist
  - metrics
`), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ws-main", def.ID)
	require.Equal(t, "/var/lib/workspace", def.DataDir)
	require.Equal(t, "127.0.0.1:7100", def.BindAddr)
	require.True(t, def.Bootstrap)
	require.Equal(t, []string{"persist", "metrics"}, def.Extensions)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
id = "ws-toml"
data_dir = "/tmp/ws-toml"
bind_addr = "127.0.0.1:7200"
`), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ws-toml", def.ID)
	require.Equal(t, "127.0.0.1:7200", def.BindAddr)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": "ws-json", "data_dir": "/tmp/ws-json"}`), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ws-json", def.ID)
}

func TestLoadMissingIDErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`data_dir: /tmp/x`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
