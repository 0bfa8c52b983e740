// Package config loads and saves the two small on-disk files kept outside
// the cache: config.toml (user preferences, parsed with
// github.com/pelletier/go-toml/v2) and the versioned <data>/data file
// (remembered email and device identifier).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// AutoLock is the auto-lock policy: never, after a fixed duration, or
// immediately (duration zero).
type AutoLock struct {
	Never    bool
	Duration time.Duration
}

// ParseAutoLock decodes config.toml's auto_lock value: the literal
// "never", or "<N>[s|m|h]".
func ParseAutoLock(s string) (AutoLock, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "never") {
		return AutoLock{Never: true}, nil
	}
	if s == "" {
		return AutoLock{}, errors.New("auto_lock must not be empty")
	}

	unit := s[len(s)-1]
	numPart := s
	var mul time.Duration
	switch unit {
	case 's':
		mul = time.Second
		numPart = s[:len(s)-1]
	case 'm':
		mul = time.Minute
		numPart = s[:len(s)-1]
	case 'h':
		mul = time.Hour
		numPart = s[:len(s)-1]
	default:
		mul = time.Second
	}

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return AutoLock{}, fmt.Errorf("invalid auto_lock value %q: %w", s, err)
	}
	if n < 0 {
		return AutoLock{}, fmt.Errorf("invalid auto_lock value %q: negative", s)
	}
	return AutoLock{Duration: time.Duration(n) * mul}, nil
}

// RofiOptions is the launcher-invocation subtable: the binary path plus
// pass-through flags. Constructing and exec'ing the launcher itself lives
// in cmd/agent; this struct is the contract the agent reads to do so.
type RofiOptions struct {
	Binary string   `toml:"binary"`
	Flags  []string `toml:"flags"`
}

// Config mirrors config.toml.
type Config struct {
	AutoLockRaw        string       `toml:"auto_lock"`
	CopyNotification   bool         `toml:"copy_notification"`
	ClientID           string       `toml:"client_id"`
	DeviceName         string       `toml:"device_name"`
	DeviceType         string       `toml:"device_type"`
	CheckPasswordBreach bool        `toml:"check_password_breach"`
	RofiOptions        RofiOptions  `toml:"rofi_options"`
}

// Default returns the configuration used when config.toml is absent.
func Default() Config {
	return Config{
		AutoLockRaw:         "never",
		CopyNotification:    true,
		ClientID:            "desktop",
		DeviceName:          "rofi-bw",
		DeviceType:          "linux",
		CheckPasswordBreach: false,
		RofiOptions: RofiOptions{
			Binary: "rofi",
		},
	}
}

// AutoLock parses AutoLockRaw, defaulting to Never on a malformed value.
// A config file is parsed once at startup and a parse failure there is
// fatal, but a single malformed field degrading to the safest policy is
// preferable to refusing to start at all.
func (c Config) AutoLock() AutoLock {
	al, err := ParseAutoLock(c.AutoLockRaw)
	if err != nil {
		return AutoLock{Never: true}
	}
	return al
}

// Load reads and parses path, returning Default() if the file does not
// exist. A malformed file is a startup-fatal error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// dataFileVersion is the single byte prefixing <data>/data.
const dataFileVersion = 0x00

type dataFilePayload struct {
	Email    string    `toml:"email,omitempty"`
	DeviceID uuid.UUID `toml:"device_id"`
}

// DataFile is the small persisted identity record: the last-used email
// (optional) and a stable per-install device identifier.
type DataFile struct {
	Email    string
	DeviceID uuid.UUID
}

// LoadDataFile reads <data>/data, generating and persisting a fresh
// DeviceID if the file is absent.
func LoadDataFile(path string) (DataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fresh := DataFile{DeviceID: uuid.New()}
			if saveErr := SaveDataFile(path, fresh); saveErr != nil {
				return DataFile{}, fmt.Errorf("initialize data file: %w", saveErr)
			}
			return fresh, nil
		}
		return DataFile{}, fmt.Errorf("read data file: %w", err)
	}

	if len(data) < 1 {
		return DataFile{}, errors.New("data file truncated")
	}
	if data[0] != dataFileVersion {
		return DataFile{}, fmt.Errorf("unsupported data file version %d", data[0])
	}

	var payload dataFilePayload
	if err := toml.Unmarshal(data[1:], &payload); err != nil {
		return DataFile{}, fmt.Errorf("parse data file: %w", err)
	}
	return DataFile{Email: payload.Email, DeviceID: payload.DeviceID}, nil
}

// SaveDataFile atomically overwrites path with df, matching the
// create-temp-then-rename pattern used by internal/cache.
func SaveDataFile(path string, df DataFile) error {
	body, err := toml.Marshal(dataFilePayload{Email: df.Email, DeviceID: df.DeviceID})
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	out := make([]byte, 0, 1+len(body))
	out = append(out, dataFileVersion)
	out = append(out, body...)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".data-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp data file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp data file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}
