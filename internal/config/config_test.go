package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreiashu/geoselect"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geoselect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, geoselect.DefaultMaxFileSize, cfg.Upload.MaxFileSize)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9090"
database:
  path: /var/lib/geoselect/units.db
table:
  ttl: 30s
upload:
  max_file_size: 1048576
pairs:
  - country: pays_naissance
    city: ville_naissance
log:
  debug: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/geoselect/units.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Table.TTL)
	assert.Equal(t, int64(1<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, geoselect.DefaultMaxTotalSize, cfg.Upload.MaxTotalSize, "unset keys keep their defaults")
	assert.Equal(t, []geoselect.PairConfig{{CountryField: "pays_naissance", CityField: "ville_naissance"}}, cfg.Pairs)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GEOSELECT_ADDR", ":7000")
	t.Setenv("GEOSELECT_DB", "/tmp/units.db")
	t.Setenv("GEOSELECT_TABLE_TTL", "1m")
	t.Setenv("GEOSELECT_DEBUG", "true")

	cfg, err := Load(writeConfig(t, "server:\n  addr: \":9090\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/units.db", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.Table.TTL)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{name: "malformed yaml", body: "server: [", wantErr: "parsing config"},
		{name: "negative ttl", body: "table:\n  ttl: -1s\n", wantErr: "table.ttl"},
		{name: "empty addr", body: "server:\n  addr: \"\"\n", wantErr: "server.addr"},
		{name: "half a pair", body: "pairs:\n  - country: pays\n", wantErr: "pairs[0]"},
		{name: "bad ttl env", env: map[string]string{"GEOSELECT_TABLE_TTL": "soon"}, wantErr: "GEOSELECT_TABLE_TTL"},
		{name: "bad debug env", env: map[string]string{"GEOSELECT_DEBUG": "maybe"}, wantErr: "GEOSELECT_DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")
}
