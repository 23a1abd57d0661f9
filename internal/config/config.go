// Package config provides configuration loading for the launchpad service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFactoryAddress is the compiled-in fallback used when neither
// the request nor the environment supplies a factory address.
const DefaultFactoryAddress = "0x7e32b54800705876d3b5cfbc7d9c226a211f7c1a"

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Deployer DeployerConfig `mapstructure:"deployer"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"` // dev, staging, prod
}

// DeployerConfig holds the deployment pipeline configuration: the
// secrets handed to the external tools, tool locations, and per-step
// timeouts.
type DeployerConfig struct {
	PrivateKey     string `mapstructure:"private_key"`
	RPCEndpoint    string `mapstructure:"rpc_endpoint"`
	FactoryAddress string `mapstructure:"factory_address"`

	ContractDir string `mapstructure:"contract_dir"`
	ScratchDir  string `mapstructure:"scratch_dir"`

	CargoBin string `mapstructure:"cargo_bin"`
	CastBin  string `mapstructure:"cast_bin"`

	MaxFeeGwei  int    `mapstructure:"max_fee_gwei"`
	CacheBidWei string `mapstructure:"cache_bid_wei"`

	// ProbeTimeout bounds read-only checks (code reads, view calls);
	// SendTimeout bounds steps that submit a signed transaction;
	// ConfirmTimeout bounds the receipt-polling loop after a send.
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// Validate checks that the secrets the pipeline cannot run without are
// present. Called once at startup and again per request so a config
// hole is reported before any external process is spawned.
func (c DeployerConfig) Validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("deployer private key is not configured")
	}
	if c.RPCEndpoint == "" {
		return fmt.Errorf("deployer RPC endpoint is not configured")
	}
	return nil
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/launchpad")

	// Enable environment variable override
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Explicitly bind secret environment variables (nested struct issue with viper)
	v.BindEnv("deployer.private_key", "LAUNCHPAD_DEPLOYER_PRIVATE_KEY")
	v.BindEnv("deployer.rpc_endpoint", "LAUNCHPAD_DEPLOYER_RPC_ENDPOINT")
	v.BindEnv("deployer.factory_address", "LAUNCHPAD_DEPLOYER_FACTORY_ADDRESS")
	v.BindEnv("deployer.contract_dir", "LAUNCHPAD_DEPLOYER_CONTRACT_DIR")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	// Deploy responses are written only after the pipeline finishes,
	// so the write timeout must cover a full pipeline run.
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.environment", "dev")

	// Deployer defaults
	v.SetDefault("deployer.factory_address", "")
	v.SetDefault("deployer.contract_dir", "./contracts/token")
	v.SetDefault("deployer.scratch_dir", "")
	v.SetDefault("deployer.cargo_bin", "cargo")
	v.SetDefault("deployer.cast_bin", "cast")
	v.SetDefault("deployer.max_fee_gwei", 100)
	v.SetDefault("deployer.cache_bid_wei", "0")
	v.SetDefault("deployer.probe_timeout", "5s")
	v.SetDefault("deployer.send_timeout", "90s")
	v.SetDefault("deployer.confirm_timeout", "60s")
}
