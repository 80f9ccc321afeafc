package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc map[string]interface{}) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, map[string]interface{}{
		"interface": "wlan0",
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wlan0", cfg.Interface)
	assert.Equal(t, 350, cfg.ChannelDwellMs)
	assert.Equal(t, []int{1, 6, 11}, cfg.Channels24GHz)
	assert.NotEmpty(t, cfg.TapUUID)
}

func TestLoad_MigratesLegacyChannels(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, map[string]interface{}{
		"interface": "wlan0",
		"channels":  []int{1, 6, 11, 36},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Nil(t, cfg.Channels)
	assert.Contains(t, cfg.Channels24GHz, 36)
}

func TestLoad_PersistsGeneratedUUIDAcrossLoads(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, map[string]interface{}{"interface": "wlan0"})

	first, err := Load(path)
	require.NoError(t, err)

	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.TapUUID, second.TapUUID)
}

func TestLoad_RejectsMissingInterface(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, map[string]interface{}{})

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownTopLevelKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, map[string]interface{}{
		"interface":   "wlan0",
		"not_a_field": "surprise",
	})

	_, err := Load(path)
	assert.Error(t, err)
}

func TestChannelPlan_MergesBandsDedupedInOrder(t *testing.T) {
	cfg := defaults()
	cfg.Channels24GHz = []int{1, 6, 11}
	cfg.Channels5GHz = []int{36, 1}
	cfg.Channels6GHz = []int{}

	plan := cfg.ChannelPlan()
	assert.Equal(t, []int{1, 6, 11, 36}, plan)
}
