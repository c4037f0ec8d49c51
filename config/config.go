package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddress = ":8547"
	defaultDataDir       = "./escrow-data"
	defaultContract      = "escrow"
	defaultRegistry      = "nft.registry"
	defaultGasTGas       = 5
	defaultWorkers       = 2
	defaultQueueCapacity = 1024
)

// Config is the escrowd configuration file.
type Config struct {
	ListenAddress   string    `toml:"ListenAddress"`
	DataDir         string    `toml:"DataDir"`
	Env             string    `toml:"Env"`
	LogFile         string    `toml:"LogFile,omitempty"`
	ContractAccount string    `toml:"ContractAccount"`
	RegistryAccount string    `toml:"RegistryAccount"`
	RegistryURL     string    `toml:"RegistryURL,omitempty"`
	RegistryToken   string    `toml:"RegistryToken,omitempty"`
	GasTGas         uint64    `toml:"GasTGas"`
	GateOnPhase     bool      `toml:"GateOnPhase"`
	Workers         int       `toml:"Workers"`
	QueueCapacity   int       `toml:"QueueCapacity"`
	ReceiptDB       string    `toml:"ReceiptDB,omitempty"`
	Admins          []string  `toml:"Admins"`
	Auth            Auth      `toml:"auth"`
	RateLimit       RateLimit `toml:"rate_limit"`
	Telemetry       Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh deployment.
func Default() *Config {
	return &Config{
		ListenAddress:   defaultListenAddress,
		DataDir:         defaultDataDir,
		Env:             "dev",
		ContractAccount: defaultContract,
		RegistryAccount: defaultRegistry,
		GasTGas:         defaultGasTGas,
		Workers:         defaultWorkers,
		QueueCapacity:   defaultQueueCapacity,
		Admins:          []string{},
		Auth: Auth{
			Issuer:     "escrowd",
			AdminScope: DefaultAdminScope,
		},
		RateLimit: RateLimit{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

func (c *Config) normalize() {
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	c.ContractAccount = strings.TrimSpace(c.ContractAccount)
	c.RegistryAccount = strings.TrimSpace(c.RegistryAccount)
	c.RegistryURL = strings.TrimSpace(c.RegistryURL)
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	if c.Admins == nil {
		c.Admins = []string{}
	}
	if strings.TrimSpace(c.Auth.AdminScope) == "" {
		c.Auth.AdminScope = DefaultAdminScope
	}
}

// ReceiptDBPath resolves the SQLite receipt archive path relative to DataDir.
// An empty result disables the archive.
func (c *Config) ReceiptDBPath() string {
	path := strings.TrimSpace(c.ReceiptDB)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// StateDir is the LevelDB directory holding contract state.
func (c *Config) StateDir() string { return filepath.Join(c.DataDir, "state") }

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
