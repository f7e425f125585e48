package settings_test

import (
	"testing"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/settings"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsYAML = `
dsn: https://filekey@host/3
debug: true
queue_capacity: 400
retry_delays: ["500ms", "1s"]
transmit_rate_per_second: 10
categories:
  log:
    capacity: 250
    batch_size: 50
    flush_timeout: 2s
weights:
  critical: 8
  high: 4
  medium: 2
  low: 1
client_reports:
  disabled: true
extra_headers:
  X-Env: staging
`

func writeSettingsFile(t *testing.T, contents string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t,
		afero.WriteFile(fs, "outpost.yaml", []byte(contents), 0o644))
	return fs
}

func TestLoad(t *testing.T) {
	fs := writeSettingsFile(t, settingsYAML)

	params, err := settings.Load(fs, "outpost.yaml")
	require.NoError(t, err)

	s, err := settings.New(params)
	require.NoError(t, err)
	assert.Equal(t, "filekey", s.DSN().PublicKey())
	assert.True(t, s.Debug())
	assert.Equal(t, 400, s.QueueCapacity())
	assert.Equal(t,
		[]time.Duration{500 * time.Millisecond, time.Second},
		s.RetryDelays())
	assert.Equal(t, 10.0, s.TransmitRatePerSecond())
	override, ok := s.BufferOverride(protocol.CategoryLog)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, override.FlushTimeout)
	assert.Equal(t, 8, s.PriorityWeights().Critical)
	assert.False(t, s.ClientReportsEnabled())
	assert.Equal(t, map[string]string{"X-Env": "staging"}, s.ExtraHeaders())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := settings.Load(afero.NewMemMapFs(), "nope.yaml")

	assert.ErrorContains(t, err, "failed to read")
}

func TestLoad_InvalidYAML(t *testing.T) {
	fs := writeSettingsFile(t, "dsn: [unclosed")

	_, err := settings.Load(fs, "outpost.yaml")

	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoad_InvalidDuration(t *testing.T) {
	fs := writeSettingsFile(t, "retry_delays: [\"soon\"]")

	_, err := settings.Load(fs, "outpost.yaml")

	assert.ErrorContains(t, err, "invalid retry delay")
}
