package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAutoLock(t *testing.T) {
	cases := []struct {
		in   string
		want AutoLock
	}{
		{"never", AutoLock{Never: true}},
		{"Never", AutoLock{Never: true}},
		{"0s", AutoLock{Duration: 0}},
		{"30s", AutoLock{Duration: 30 * time.Second}},
		{"5m", AutoLock{Duration: 5 * time.Minute}},
		{"2h", AutoLock{Duration: 2 * time.Hour}},
		{"10", AutoLock{Duration: 10 * time.Second}},
	}
	for _, c := range cases {
		got, err := ParseAutoLock(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseAutoLockRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "never-x", "-5s", "abc"} {
		_, err := ParseAutoLock(in)
		assert.Error(t, err, in)
	}
}

func TestConfigAutoLockDegradesOnMalformedValue(t *testing.T) {
	cfg := Config{AutoLockRaw: "garbage"}
	assert.Equal(t, AutoLock{Never: true}, cfg.AutoLock())
}

func TestLoadMissingReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
auto_lock = "5m"
copy_notification = false
client_id = "my-client"

[rofi_options]
binary = "wofi"
flags = ["-i"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5m", cfg.AutoLockRaw)
	assert.False(t, cfg.CopyNotification)
	assert.Equal(t, "my-client", cfg.ClientID)
	assert.Equal(t, "wofi", cfg.RofiOptions.Binary)
	assert.Equal(t, []string{"-i"}, cfg.RofiOptions.Flags)
}

func TestDataFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	df, err := LoadDataFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, df.DeviceID.String(), "")

	df.Email = "a@b.com"
	require.NoError(t, SaveDataFile(path, df))

	reloaded, err := LoadDataFile(path)
	require.NoError(t, err)
	assert.Equal(t, df, reloaded)
}

func TestLoadDataFilePersistsGeneratedDeviceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")

	first, err := LoadDataFile(path)
	require.NoError(t, err)

	second, err := LoadDataFile(path)
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID, "device id must be stable across loads")
}
