package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_Entries(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
data_dir: `+dataDir+`
listen: ":9000"
auth:
  jwt_secret: s3cret
entries:
  - id: home
    url: https://unifi.local/
    username: admin
    password: pw
    options:
      scan_interval: 5
      include_clients: true
      client_scope: all
      svg_width: 1200
      tracked_clients: |
        AA:BB:CC:DD:EE:01
        garbage
  - url: http://10.0.0.2:8080
    username: u
    password: p
    site: office
    verify_ssl: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Len(t, cfg.Entries, 2)

	home := cfg.Entries[0].Entry()
	assert.Equal(t, "home", home.ID)
	assert.Equal(t, "https://unifi.local", home.BaseURL)
	assert.Equal(t, "default", home.Site)
	assert.True(t, home.VerifySSL)
	assert.Equal(t, 5, home.Options.ScanInterval)
	assert.Equal(t, model.DefaultRequestTimeout, home.Options.RequestTimeoutSeconds)
	assert.Equal(t, model.DefaultPayloadCacheTTL, home.Options.PayloadCacheTTL)
	assert.True(t, home.Options.ShowWAN)
	require.NotNil(t, home.Options.SVGWidth)
	assert.Equal(t, 1200, *home.Options.SVGWidth)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:01"}, home.Options.TrackedMACs())

	second := cfg.Entries[1].Entry()
	assert.Equal(t, "entry2", second.ID)
	assert.Equal(t, "office", second.Site)
	assert.False(t, second.VerifySSL)

	_, ok := cfg.FindEntry("home")
	assert.True(t, ok)
	_, ok = cfg.FindEntry("missing")
	assert.False(t, ok)
}

func TestLoadConfig_DuplicateEntryID(t *testing.T) {
	path := writeConfig(t, `
data_dir: `+t.TempDir()+`
entries:
  - id: a
    url: https://a
  - id: a
    url: https://b
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
