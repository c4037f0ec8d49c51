package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"assetescrow/core/types"
)

// MaxGasTGas caps the per-transfer gas budget.
var MaxGasTGas = uint64(300)

// Validate checks the configuration before the daemon wires anything.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("config: ListenAddress %q: %w", c.ListenAddress, err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if err := types.AccountID(c.ContractAccount).Validate(); err != nil {
		return fmt.Errorf("config: ContractAccount: %w", err)
	}
	if err := types.AccountID(c.RegistryAccount).Validate(); err != nil {
		return fmt.Errorf("config: RegistryAccount: %w", err)
	}
	if c.ContractAccount == c.RegistryAccount {
		return fmt.Errorf("config: ContractAccount and RegistryAccount must differ")
	}
	if c.RegistryURL != "" {
		u, err := url.Parse(c.RegistryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: RegistryURL %q is not an absolute URL", c.RegistryURL)
		}
	}
	if c.GasTGas == 0 || c.GasTGas > MaxGasTGas {
		return fmt.Errorf("config: GasTGas must be between 1 and %d", MaxGasTGas)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: Workers must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("config: QueueCapacity must be positive")
	}
	for _, admin := range c.Admins {
		if err := types.AccountID(strings.TrimSpace(admin)).Validate(); err != nil {
			return fmt.Errorf("config: Admins: %w", err)
		}
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate_limit values must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("config: rate_limit.Burst required when RequestsPerSecond is set")
	}
	if (c.Telemetry.Metrics || c.Telemetry.Traces) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: telemetry.Endpoint required when export is enabled")
	}
	return nil
}

// ResolveSecret resolves the JWT HMAC secret. An empty secret disables
// administrative RPC methods.
func (a Auth) ResolveSecret() string {
	if s := strings.TrimSpace(a.Secret); s != "" {
		return s
	}
	if env := strings.TrimSpace(a.SecretEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
