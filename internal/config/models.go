package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/taskmonitor/internal/events"
	"github.com/bryanchriswhite/taskmonitor/internal/logger"
	"github.com/bryanchriswhite/taskmonitor/internal/plugin"
	"github.com/bryanchriswhite/taskmonitor/internal/tracker"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	ServerPort  int    `json:"server_port" yaml:"server_port"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogPretty   bool   `json:"log_pretty" yaml:"log_pretty"`
	Display     string `json:"display" yaml:"display"` // empty uses $DISPLAY
	EventPrefix string `json:"event_prefix" yaml:"event_prefix"`
	EventBuffer int    `json:"event_buffer" yaml:"event_buffer"`

	Tray TrayConfig `json:"tray" yaml:"tray"`
	DBus DBusConfig `json:"dbus" yaml:"dbus"`
}

// TrayConfig selects the window excluded from tracking as the shell tray
type TrayConfig struct {
	ProcessName string `json:"process_name" yaml:"process_name"`
	WindowClass string `json:"window_class" yaml:"window_class"`
}

// DBusConfig represents the session bus signal emitter configuration
type DBusConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Path      string `json:"path" yaml:"path"`
	Interface string `json:"interface" yaml:"interface"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		actualConfigPath = filepath.Join(homeDir, ".config", "taskmonitor", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("log_level", m.config.LogLevel).
		Bool("dbus", m.config.DBus.Enabled).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		ServerPort:  8080,
		LogLevel:    "info",
		EventPrefix: plugin.DefaultPrefix,
		EventBuffer: events.DefaultBuffer,
		Tray: TrayConfig{
			ProcessName: tracker.DefaultTrayProcessName,
			WindowClass: tracker.DefaultTrayWindowClass,
		},
		DBus: DBusConfig{
			Path:      events.DefaultDBusPath,
			Interface: events.DefaultDBusInterface,
		},
	}
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if !logger.ValidLevel(cfg.LogLevel) {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}

	m.config = cfg
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// field binds a dotted key to a Config field
type field struct {
	get func(c *Config) string
	set func(c *Config, value string) error
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, value string) error {
			*ptr(c) = value
			return nil
		},
	}
}

func boolField(ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", value)
			}
			*ptr(c) = b
			return nil
		},
	}
}

func intField(ptr func(c *Config) *int, lo, hi int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("expected a number, got %q", value)
			}
			if n < lo || n > hi {
				return fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
			}
			*ptr(c) = n
			return nil
		},
	}
}

var fields = map[string]field{
	"server_port": intField(func(c *Config) *int { return &c.ServerPort }, 1, 65535),
	"log_level": {
		get: func(c *Config) string { return c.LogLevel },
		set: func(c *Config, value string) error {
			if !logger.ValidLevel(value) {
				return fmt.Errorf("expected trace, debug, info, warn or error, got %q", value)
			}
			c.LogLevel = strings.ToLower(value)
			return nil
		},
	},
	"log_pretty":        boolField(func(c *Config) *bool { return &c.LogPretty }),
	"display":           stringField(func(c *Config) *string { return &c.Display }),
	"event_prefix":      stringField(func(c *Config) *string { return &c.EventPrefix }),
	"event_buffer":      intField(func(c *Config) *int { return &c.EventBuffer }, 1, 1<<16),
	"tray.process_name": stringField(func(c *Config) *string { return &c.Tray.ProcessName }),
	"tray.window_class": stringField(func(c *Config) *string { return &c.Tray.WindowClass }),
	"dbus.enabled":      boolField(func(c *Config) *bool { return &c.DBus.Enabled }),
	"dbus.path":         stringField(func(c *Config) *string { return &c.DBus.Path }),
	"dbus.interface":    stringField(func(c *Config) *string { return &c.DBus.Interface }),
}

// Keys lists the settable configuration keys
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the string form of key
func (m *Manager) Value(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return f.get(m.config), nil
}

// Set parses value for key, applies it and saves
func (m *Manager) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	m.mu.Lock()
	next := *m.config
	if err := f.set(&next, value); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	m.config = &next
	m.mu.Unlock()

	return m.Save()
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
