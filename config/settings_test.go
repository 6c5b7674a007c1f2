package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyfeetx/kiosk/config"
)

func TestWriteDefaultThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()

	path, err := config.WriteDefault(dir)
	require.NoError(t, err)
	assert.Contains(t, path, "config.json")

	s, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), s)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	_, err := config.WriteDefault(dir)
	require.NoError(t, err)

	t.Setenv("KIOSK_PREFIX", ">")
	t.Setenv("KIOSK_SHARD_COUNT", "4")

	s, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ">", s.DefaultPrefix)
	assert.Equal(t, 4, s.ShardCount)
}

func TestLoadMissingFileIsNotFound(t *testing.T) {
	_, err := config.Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, config.IsNotFound(err))
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	s := config.Default()
	s.Token = ""
	assert.Error(t, s.Validate())
}

func TestValidateRejectsZeroShards(t *testing.T) {
	s := config.Default()
	s.ShardCount = 0
	assert.Error(t, s.Validate())
}

func TestValidateDatabaseDriver(t *testing.T) {
	s := config.Default()
	s.Database.Driver = "oracle"
	assert.Error(t, s.Validate())

	s.Database.Driver = "sqlite"
	s.Database.Name = ""
	assert.Error(t, s.Validate())

	s.Database = config.DatabaseSettings{Driver: "postgres"}
	assert.Error(t, s.Validate())

	s.Database = config.DatabaseSettings{Driver: "postgres", Host: "localhost", Name: "kiosk"}
	assert.NoError(t, s.Validate())
}

func TestIntervalHelpers(t *testing.T) {
	s := config.Default()
	s.DatabaseSyncInterval = 600
	s.FeedCheckInterval = 300
	s.FeedCheckStartDelay = 30

	assert.Equal(t, 10*time.Minute, s.SyncInterval())
	assert.Equal(t, 5*time.Minute, s.FeedInterval())
	assert.Equal(t, 30*time.Second, s.FeedStartDelay())
}
