package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const programID = "7072676d00000000000000000000000000000000000000000000000000000001"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestMustLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		// Given: a config naming only the program
		path := writeConfig(t, "program:\n  id: "+programID+"\n")

		// When: it is loaded
		conf := MustLoad(path)

		// Then: everything else falls back to the defaults
		assert.Equal(t, "info", conf.LogLevel)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Equal(t, uint64(300), conf.Program.FundingWatermark)
		assert.Equal(t, 5, conf.Program.DashboardCapacity)

		key, err := conf.Program.Key()
		require.NoError(t, err)
		assert.Equal(t, programID, key.String())
	})

	t.Run("Overrides", func(t *testing.T) {
		path := writeConfig(t, `
log-level: debug
redis:
  host: cache
  port: "6380"
program:
  id: `+programID+`
  funding-watermark: 50
  dashboard-capacity: 8
`)

		conf := MustLoad(path)

		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "cache:6380", conf.Redis.GetRedisAddr())
		assert.Equal(t, uint64(50), conf.Program.FundingWatermark)
		assert.Equal(t, 8, conf.Program.DashboardCapacity)
	})

	t.Run("Invalid program id", func(t *testing.T) {
		path := writeConfig(t, "program:\n  id: nope\n")

		assert.Panics(t, func() { MustLoad(path) })
	})

	t.Run("Missing file", func(t *testing.T) {
		assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yml")) })
	})
}
