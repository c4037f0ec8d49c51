package config

import "time"

// DefaultAdminScope is the JWT scope required for administrative calls.
const DefaultAdminScope = "escrow:admin"

// Auth configures bearer token verification for privileged RPC methods.
// The HMAC secret is read from the environment variable named by SecretEnv
// when Secret is empty.
type Auth struct {
	Secret     string `toml:"Secret,omitempty"`
	SecretEnv  string `toml:"SecretEnv,omitempty"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience,omitempty"`
	AdminScope string `toml:"AdminScope"`
}

// RateLimit bounds RPC requests per client address. Zero disables limiting.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Telemetry configures OTLP export of traces and metrics.
type Telemetry struct {
	Endpoint       string `toml:"Endpoint,omitempty"`
	Headers        string `toml:"Headers,omitempty"`
	Insecure       bool   `toml:"Insecure"`
	Metrics        bool   `toml:"Metrics"`
	Traces         bool   `toml:"Traces"`
	ExportInterval int    `toml:"ExportIntervalSeconds,omitempty"`
}

// Interval returns the metric export interval.
func (t Telemetry) Interval() time.Duration {
	if t.ExportInterval <= 0 {
		return 15 * time.Second
	}
	return time.Duration(t.ExportInterval) * time.Second
}
