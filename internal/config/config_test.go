package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, 120*time.Second, cfg.Match.GracePeriod)
	assert.Equal(t, 30, cfg.Match.StartingHealth)
	assert.Equal(t, 5, cfg.Match.BoardSlots)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Match.GracePeriod)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9999"
match:
  grace_period: 45s
  deck_size: 20
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 45*time.Second, cfg.Match.GracePeriod)
	assert.Equal(t, 20, cfg.Match.DeckSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Values the file does not mention keep their defaults.
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, 5, cfg.Match.BoardSlots)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"non-positive grace", "match:\n  grace_period: 0s\n"},
		{"zero board slots", "match:\n  board_slots: 0\n"},
		{"deck smaller than hand", "match:\n  deck_size: 2\n  opening_hand_size: 4\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "match: [not a map"))
	assert.Error(t, err)
}

func TestWatchInvokesOnChange(t *testing.T) {
	path := writeConfig(t, "match:\n  grace_period: 60s\n")

	changed := make(chan *Config, 1)
	require.NoError(t, Watch(path, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("match:\n  grace_period: 90s\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 90*time.Second, cfg.Match.GracePeriod)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestWatchNoopWithoutPath(t *testing.T) {
	assert.NoError(t, Watch("", func(*Config) {}))
	assert.NoError(t, Watch("some/path.yaml", nil))
}
