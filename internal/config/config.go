package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Audio device names accepted by the audio_device key
const (
	DeviceSpeaker = "speaker"
	DeviceNull    = "null"
)

// Config holds application configuration
type Config struct {
	// Private directory holding the socket, log, lock and history database.
	// Default: <tmp>/muse-<uid>
	WorkDir string

	// Control socket path. Default: <work_dir>/muse.socket
	Socket string

	// Daemon log file. Default: <work_dir>/muse.log
	LogFile       string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int

	// Command history database. Default: <work_dir>/history.db
	HistoryDB        string
	HistoryRetention time.Duration

	// How long `start` waits for the daemon to answer
	StartTimeout time.Duration

	// Per-connection read deadline (0 disables it)
	ReadTimeout     time.Duration
	MaxCommandBytes int

	// Output device: "speaker" or "null"
	AudioDevice string
	SampleRate  int
	Buffer      time.Duration
}

// fileConfig is the on-disk TOML shape, used for sample generation
type fileConfig struct {
	WorkDir          string `toml:"work_dir"`
	Socket           string `toml:"socket"`
	LogFile          string `toml:"log_file"`
	LogLevel         string `toml:"log_level"`
	LogMaxSizeMB     int    `toml:"log_max_size_mb"`
	LogMaxBackups    int    `toml:"log_max_backups"`
	HistoryDB        string `toml:"history_db"`
	HistoryRetention string `toml:"history_retention"`
	StartTimeout     string `toml:"start_timeout"`
	ReadTimeout      string `toml:"read_timeout"`
	MaxCommandBytes  int    `toml:"max_command_bytes"`
	AudioDevice      string `toml:"audio_device"`
	SampleRate       int    `toml:"sample_rate"`
	Buffer           string `toml:"buffer"`
}

// LockFile is the single-instance lock held by a running daemon
func (c *Config) LockFile() string {
	return filepath.Join(c.WorkDir, "muse.lock")
}

// RunInfoFile describes the running daemon (pid, socket, start time)
func (c *Config) RunInfoFile() string {
	return filepath.Join(c.WorkDir, "muse.json")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("work_dir", defaultWorkDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("history_retention", 30*24*time.Hour)
	v.SetDefault("start_timeout", 5*time.Second)
	v.SetDefault("read_timeout", time.Duration(0))
	v.SetDefault("max_command_bytes", 4096)
	v.SetDefault("audio_device", DeviceSpeaker)
	v.SetDefault("sample_rate", 44100)
	v.SetDefault("buffer", 100*time.Millisecond)
}

// Load reads configuration from file, environment and flags.
//
// configPath selects the config file; when empty, config.toml is looked up in the
// config directory. flags may be nil; when set, the "socket" and "work-dir" flags
// override file and environment values.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(GetConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional unless one was named explicitly
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("MUSE")
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range map[string]string{"socket": "socket", "work_dir": "work-dir"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		WorkDir:          expandHome(v.GetString("work_dir")),
		Socket:           expandHome(v.GetString("socket")),
		LogFile:          expandHome(v.GetString("log_file")),
		LogLevel:         v.GetString("log_level"),
		LogMaxSizeMB:     v.GetInt("log_max_size_mb"),
		LogMaxBackups:    v.GetInt("log_max_backups"),
		HistoryDB:        expandHome(v.GetString("history_db")),
		HistoryRetention: v.GetDuration("history_retention"),
		StartTimeout:     v.GetDuration("start_timeout"),
		ReadTimeout:      v.GetDuration("read_timeout"),
		MaxCommandBytes:  v.GetInt("max_command_bytes"),
		AudioDevice:      strings.ToLower(v.GetString("audio_device")),
		SampleRate:       v.GetInt("sample_rate"),
		Buffer:           v.GetDuration("buffer"),
	}

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDerived fills paths that default to locations inside the work directory
func (c *Config) applyDerived() {
	if abs, err := filepath.Abs(c.WorkDir); err == nil {
		c.WorkDir = abs
	}
	if c.Socket == "" {
		c.Socket = filepath.Join(c.WorkDir, "muse.socket")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.WorkDir, "muse.log")
	}
	if c.HistoryDB == "" {
		c.HistoryDB = filepath.Join(c.WorkDir, "history.db")
	}
}

// Validate checks values that would otherwise fail late inside the daemon
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir must not be empty")
	}
	switch c.AudioDevice {
	case DeviceSpeaker, DeviceNull:
	default:
		return fmt.Errorf("invalid audio_device %q (must be %q or %q)", c.AudioDevice, DeviceSpeaker, DeviceNull)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Buffer <= 0 {
		return fmt.Errorf("buffer must be positive, got %s", c.Buffer)
	}
	if c.MaxCommandBytes <= 0 {
		return fmt.Errorf("max_command_bytes must be positive, got %d", c.MaxCommandBytes)
	}
	if c.StartTimeout <= 0 {
		return fmt.Errorf("start_timeout must be positive, got %s", c.StartTimeout)
	}
	return nil
}

// defaultWorkDir returns a per-user directory under the system temp dir.
// $XDG_RUNTIME_DIR is not used: it is 0700, so other users could not reach the socket.
func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("muse-%d", os.Getuid()))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// getConfigDir returns the configuration directory path
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "muse")
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// DefaultConfigPath returns where `config init` writes by default
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.toml")
}

// WriteSample writes a TOML config file holding the default values
func WriteSample(path string) error {
	v := viper.New()
	setDefaults(v)

	sample := fileConfig{
		WorkDir:          v.GetString("work_dir"),
		LogLevel:         v.GetString("log_level"),
		LogMaxSizeMB:     v.GetInt("log_max_size_mb"),
		LogMaxBackups:    v.GetInt("log_max_backups"),
		HistoryRetention: v.GetDuration("history_retention").String(),
		StartTimeout:     v.GetDuration("start_timeout").String(),
		ReadTimeout:      v.GetDuration("read_timeout").String(),
		MaxCommandBytes:  v.GetInt("max_command_bytes"),
		AudioDevice:      v.GetString("audio_device"),
		SampleRate:       v.GetInt("sample_rate"),
		Buffer:           v.GetDuration("buffer").String(),
	}

	data, err := toml.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode sample config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
