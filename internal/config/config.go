package config

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// Config is the unified configuration for an ursanet node: the fields
// named directly by the node-configuration surface (keypair path,
// listen/bootstrap addresses, and the NAT-traversal/discovery toggles),
// plus the ambient identity/security/telemetry sections carried over
// from the node-configuration conventions.
type Config struct {
	Version   int             `yaml:"version,omitempty"`
	Identity  IdentityConfig  `yaml:"identity"`
	Swarm     SwarmConfig     `yaml:"swarm"`
	Security  SecurityConfig  `yaml:"security,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// IdentityConfig holds identity-related configuration.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// SwarmConfig holds the libp2p swarm construction parameters.
type SwarmConfig struct {
	ListenAddr     string   `yaml:"swarm_addr"`
	BootstrapNodes []string `yaml:"bootstrap_nodes"`
	RelayClient    bool     `yaml:"relay_client,omitempty"`
	Autonat        bool     `yaml:"autonat,omitempty"`
	MDNS           bool     `yaml:"mdns,omitempty"`
}

// SecurityConfig holds connection-gating configuration.
type SecurityConfig struct {
	AuthorizedKeysFile     string `yaml:"authorized_keys_file,omitempty"`
	EnableConnectionGating bool   `yaml:"enable_connection_gating,omitempty"`
}

// TelemetryConfig holds observability settings, disabled by default.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address,omitempty"` // default: "127.0.0.1:9091"
}
