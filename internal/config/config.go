package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration. The client reads Bridge, the
// reference host reads Host and Security.
type Config struct {
	Host     Host     `json:"host"`
	Bridge   Bridge   `json:"bridge"`
	Security Security `json:"security"`
}

// Host configures the reference host process
type Host struct {
	ServerAddress string `json:"serverAddress"`
	DatabasePath  string `json:"databasePath"`
	DatabaseURL   string `json:"databaseUrl"`
	// ImportFolder is scanned by add_photos_from_folder when no path is given.
	ImportFolder      string   `json:"importFolder"`
	ThumbnailSize     int      `json:"thumbnailSize"`
	DeviceName        string   `json:"deviceName"`
	AllowedExtensions []string `json:"allowedExtensions"`
	// MaintenanceInterval between missing-file sweeps; zero disables them.
	MaintenanceInterval Duration `json:"maintenanceInterval"`
}

// UsePostgres returns true if PostgreSQL should be used
func (h Host) UsePostgres() bool {
	return h.DatabaseURL != ""
}

// Bridge configures the client side of the host connection
type Bridge struct {
	HostURL        string   `json:"hostUrl"`
	APIKey         string   `json:"apiKey"`
	APIKeyHeader   string   `json:"apiKeyHeader"`
	CommandTimeout Duration `json:"commandTimeout"`
	DialTimeout    Duration `json:"dialTimeout"`
	DeviceName     string   `json:"deviceName"`
}

// Security configuration for the reference host
type Security struct {
	APIKey string `json:"apiKey"`
	// APIKeyHash is a bcrypt hash checked instead of APIKey when set.
	APIKeyHash   string `json:"apiKeyHash"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Duration is a time.Duration that reads "30s" style strings or seconds
// from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Default configuration
func defaultConfig() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "picksy"
	}
	return &Config{
		Host: Host{
			ServerAddress: ":5050",
			DatabasePath:  "picksy.db",
			ImportFolder:  "./photos",
			ThumbnailSize: 400,
			DeviceName:    hostname,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif",
			},
			MaintenanceInterval: Duration(time.Hour),
		},
		Bridge: Bridge{
			HostURL:        "ws://localhost:5050/ws",
			APIKeyHeader:   "X-API-Key",
			CommandTimeout: Duration(30 * time.Second),
			DialTimeout:    Duration(10 * time.Second),
			DeviceName:     hostname,
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads an explicit config file on top of the defaults and the
// environment. A missing file is an error here, unlike Load.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	cfg := defaultConfig()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		c.Host.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Host.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		c.Host.DatabaseURL = dbURL
	}
	if folder := os.Getenv("IMPORT_FOLDER"); folder != "" {
		c.Host.ImportFolder = folder
	}
	if name := os.Getenv("DEVICE_NAME"); name != "" {
		c.Host.DeviceName = name
		c.Bridge.DeviceName = name
	}
	if size := os.Getenv("THUMBNAIL_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			c.Host.ThumbnailSize = n
		}
	}

	if interval := os.Getenv("MAINTENANCE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Host.MaintenanceInterval = Duration(d)
		}
	}

	if url := os.Getenv("PICKSY_HOST_URL"); url != "" {
		c.Bridge.HostURL = url
	}
	if timeout := os.Getenv("PICKSY_COMMAND_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Bridge.CommandTimeout = Duration(d)
		}
	}

	// API_KEY is shared so a client and host started from the same shell agree.
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		c.Security.APIKey = apiKey
		c.Bridge.APIKey = apiKey
	}
	if hash := os.Getenv("API_KEY_HASH"); hash != "" {
		c.Security.APIKeyHash = hash
	}
}

// Validate rejects values that would only fail later and less clearly
func (c *Config) Validate() error {
	if c.Bridge.CommandTimeout <= 0 {
		return fmt.Errorf("bridge.commandTimeout must be positive")
	}
	if c.Host.ThumbnailSize <= 0 {
		return fmt.Errorf("host.thumbnailSize must be positive")
	}
	if c.Bridge.APIKeyHeader == "" {
		c.Bridge.APIKeyHeader = "X-API-Key"
	}
	if c.Security.APIKeyHeader == "" {
		c.Security.APIKeyHeader = "X-API-Key"
	}
	return nil
}

// PrepareHost creates the import folder and makes it absolute. Only the
// reference host calls this.
func (c *Config) PrepareHost() error {
	if err := os.MkdirAll(c.Host.ImportFolder, 0755); err != nil {
		return err
	}
	abs, err := filepath.Abs(c.Host.ImportFolder)
	if err != nil {
		return err
	}
	c.Host.ImportFolder = abs
	return nil
}
