package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tether-protocol/tether-go/pkg/supervisor"
)

const fullConfig = `
peer: sensor-42
transport:
  address: "10.0.0.5:7420"
  psk: "greenhouse-key"
  request_timeout: 3s
  handshake_timeout: 8s
disconnect_timeout: 2s
backoff:
  enabled: true
  initial: 500ms
  max: 30s
  multiplier: 2.0
  jitter: 0.25
relay_buffer: 16
log:
  file: events.tlog
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "sensor-42", cfg.Peer)
	assert.Equal(t, "10.0.0.5:7420", cfg.Transport.Address)
	assert.Equal(t, "greenhouse-key", cfg.Transport.PSK)
	assert.Equal(t, 3*time.Second, cfg.Transport.RequestTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.DisconnectTimeout.Std())
	assert.True(t, cfg.Backoff.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff.Initial.Std())
	assert.Equal(t, 0.25, cfg.Backoff.Jitter)
	assert.Equal(t, 16, cfg.RelayBuffer)
	assert.Equal(t, "events.tlog", cfg.Log.File)
}

func TestParseMinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte("peer: sensor-1\n"))
	require.NoError(t, err)
	assert.Equal(t, "sensor-1", cfg.Peer)
	assert.False(t, cfg.Backoff.Enabled)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing peer", "relay_buffer: 4\n"},
		{"bad yaml", "peer: [unclosed\n"},
		{"bad duration", "peer: p\ndisconnect_timeout: soon\n"},
		{"address and discover", "peer: p\ntransport:\n  address: \"a:1\"\n  discover: true\n"},
		{"negative relay buffer", "peer: p\nrelay_buffer: -1\n"},
		{"bad multiplier", "peer: p\nbackoff:\n  enabled: true\n  multiplier: 0.5\n"},
		{"bad jitter", "peer: p\nbackoff:\n  enabled: true\n  jitter: 2.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sensor-42", cfg.Peer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.NotEmpty(t, le.File)
}

func TestBuildSupervisor(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)
	cfg.Log.File = filepath.Join(dir, "events.tlog")

	s, closeLog, err := cfg.Build()
	require.NoError(t, err)
	defer closeLog()
	defer s.Close(nil)

	assert.Equal(t, "sensor-42", s.Peer().String())
	assert.Equal(t, supervisor.PhaseDisconnected, s.Status().Phase)
}

func TestConnectorResolvers(t *testing.T) {
	// Fixed address.
	cfg, err := Parse([]byte("peer: p\ntransport:\n  address: \"10.0.0.9:7420\"\n"))
	require.NoError(t, err)
	conn := cfg.Connector()
	require.NotNil(t, conn.Resolver)
	addr, err := conn.Resolver.Resolve(t.Context(), "p")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:7420", addr)

	// Discovery.
	cfg, err = Parse([]byte("peer: p\ntransport:\n  discover: true\n"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Connector().Resolver)

	// Neither: the connector falls back to treating the identity as
	// an address.
	cfg, err = Parse([]byte("peer: 10.0.0.9:7420\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Connector().Resolver)
}
