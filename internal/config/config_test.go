package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "0000", cfg.Mining.Difficulty)
	assert.Equal(t, 100.0, cfg.Mining.Reward)
	assert.Equal(t, "00", cfg.Mining.RewardSender)
	assert.Equal(t, 5, cfg.Peer.TimeoutSeconds)
	assert.Equal(t, "http://localhost:3001", cfg.NodeURL())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  public_url: http://node-a:4000/
mining:
  difficulty: "00"
  reward: 12.5
peer:
  seeds: ["http://node-b:4000"]
sync:
  consensus_interval: 30
`), 0644))

	t.Setenv("MINING_REWARD_SENDER", "coinbase")
	t.Setenv("PEER_SEEDS", "http://x, http://y ,")
	t.Setenv("PEBBLE_PATH", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "http://node-a:4000", cfg.NodeURL())
	assert.Equal(t, "00", cfg.Mining.Difficulty)
	assert.Equal(t, 12.5, cfg.Mining.Reward)
	assert.Equal(t, "coinbase", cfg.Mining.RewardSender)
	assert.Equal(t, []string{"http://x", "http://y"}, cfg.Peer.Seeds)
	assert.Equal(t, 30, cfg.Sync.ConsensusInterval)
	assert.Equal(t, "", cfg.Pebble.Path)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mining:\n  difficulty: zz\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map]\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNonFiniteReward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	for _, reward := range []string{".inf", "-.inf", ".nan", "-1"} {
		require.NoError(t, os.WriteFile(path, []byte("mining:\n  reward: "+reward+"\n"), 0644))
		_, err := Load(path)
		assert.Error(t, err, reward)
	}

	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	t.Setenv("MINING_REWARD", "Inf")
	_, err := Load(path)
	assert.Error(t, err)
}
