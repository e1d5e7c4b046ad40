package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "pool", cfg.IPAM.Backend)
	assert.Equal(t, 64, cfg.IPAM.PrefixLen)
	assert.Equal(t, "fd00::/48", cfg.IPAM.Pool.Root)
	assert.Equal(t, 3799, cfg.RADIUS.CoAPort)
	assert.Equal(t, 5*time.Second, cfg.IPAM.Timeout)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: "9090"
database:
  driver: postgres
  dsn: postgres://u:p@localhost/strand
ipam:
  backend: netbox
  timeout: 7s
  netbox:
    url: https://netbox.local
    token: tok
    parent_id: 3
radius:
  secret: shh
  coa_port: 1700
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "netbox", cfg.IPAM.Backend)
	assert.Equal(t, 7*time.Second, cfg.IPAM.Timeout)
	assert.Equal(t, "https://netbox.local", cfg.IPAM.NetBox.URL)
	assert.Equal(t, 3, cfg.IPAM.NetBox.ParentID)
	assert.Equal(t, "shh", cfg.RADIUS.Secret)
	assert.Equal(t, 1700, cfg.RADIUS.CoAPort)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
