package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the server configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Auth       AuthConfig       `toml:"auth"`
	Logging    LoggingConfig    `toml:"logging"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig locates the two content roots and the index database.
type StorageConfig struct {
	FilesRoot string `toml:"files_root"`
	NotesRoot string `toml:"notes_root"`
	Database  string `toml:"database"`
}

// AuthConfig holds the authorized-keys file and credential lifetimes.
// Expiries are in seconds.
type AuthConfig struct {
	AuthorizedKeys  string `toml:"authorized_keys"`
	TokenExpiry     int64  `toml:"token_expiry"`
	ChallengeExpiry int64  `toml:"challenge_expiry"`
}

// LoggingConfig holds the log level: debug, info, warn, or error.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// EncryptionConfig selects at-rest encryption for the content stores.
// Type is "none" (default) or "age"; IdentityPath points at an age X25519
// identity file when Type is "age".
type EncryptionConfig struct {
	Type         string `toml:"type"`
	IdentityPath string `toml:"identity_path,omitempty"`
}

// DataDir returns the default data directory (~/.homedrive).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".homedrive"), nil
}

// NewConfig creates a Config with default values rooted at dataDir.
func NewConfig(dataDir string) *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			FilesRoot: filepath.Join(dataDir, "files"),
			NotesRoot: filepath.Join(dataDir, "notes"),
			Database:  filepath.Join(dataDir, "homedrive.db"),
		},
		Auth: AuthConfig{
			AuthorizedKeys:  filepath.Join(dataDir, "authorized_keys"),
			TokenExpiry:     86400,
			ChallengeExpiry: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Encryption: EncryptionConfig{
			Type: "none",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Missing fields keep their
// zero value; callers that want defaults should start from NewConfig.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// ReadDefault loads configuration from the first existing default location,
// or returns a default Config when none exists. Locations, in order:
// ~/.homedrive/homedrive.toml, /etc/homedrive/homedrive.toml.
func ReadDefault() (*Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}
	locations := []string{
		filepath.Join(dataDir, "homedrive.toml"),
		"/etc/homedrive/homedrive.toml",
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return ReadFromFile(path)
		}
	}
	return NewConfig(dataDir), nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config. Fails if a config file already exists there.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// InitDataDirs creates the content roots, the database parent directory, and
// an empty authorized_keys file if missing.
func InitDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.Storage.FilesRoot, cfg.Storage.NotesRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	if dir := filepath.Dir(cfg.Storage.Database); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}
	if _, err := os.Stat(cfg.Auth.AuthorizedKeys); os.IsNotExist(err) {
		if dir := filepath.Dir(cfg.Auth.AuthorizedKeys); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating authorized_keys directory: %w", err)
			}
		}
		if err := os.WriteFile(cfg.Auth.AuthorizedKeys, nil, 0600); err != nil {
			return fmt.Errorf("creating authorized_keys file: %w", err)
		}
	}
	return nil
}
