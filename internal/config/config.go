package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Verifier kinds understood by the registry.
const (
	VerifierContent = "content"
	VerifierOracle  = "oracle"
)

// Content verifier modes.
const (
	ModeAny      = "any"
	ModeNonEmpty = "non_empty"
	ModeContains = "contains"
	ModeEquals   = "equals"
)

// Config models earlyadopters.yml.
type Config struct {
	Chain     ChainConfig               `yaml:"chain"`
	Verifiers map[string]VerifierConfig `yaml:"verifiers"`
	Oracle    OracleConfig              `yaml:"oracle"`
	Content   ContentConfig             `yaml:"content"`
	Access    AccessConfig              `yaml:"access"`
	Ledger    LedgerConfig              `yaml:"ledger"`
	Log       LogConfig                 `yaml:"log"`
	Webhooks  []WebhookConfig           `yaml:"webhooks"`
}

type ChainConfig struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	Decimals int32  `yaml:"decimals"`
}

// VerifierConfig binds an activity type to a verifier implementation.
type VerifierConfig struct {
	Kind        string `yaml:"kind"`
	Mode        string `yaml:"mode,omitempty"`
	Statement   string `yaml:"statement,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type OracleConfig struct {
	URL            string `yaml:"url"`
	Requester      string `yaml:"requester"`
	BondCurrency   string `yaml:"bond_currency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ContentConfig struct {
	// IPFSAPI selects the kubo RPC store; empty keeps content in memory.
	IPFSAPI        string `yaml:"ipfs_api"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AccessConfig struct {
	CacheSize       int    `yaml:"cache_size"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type LedgerConfig struct {
	AllowDeposits bool `yaml:"allow_deposits"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ea config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Chain.ID <= 0 {
		return fmt.Errorf("config.chain.id is required")
	}
	if c.Chain.Decimals < 0 || c.Chain.Decimals > 36 {
		return fmt.Errorf("config.chain.decimals must be between 0 and 36")
	}
	if len(c.Verifiers) == 0 {
		return fmt.Errorf("config.verifiers must register at least one activity type")
	}
	needsOracle := false
	for activityType, v := range c.Verifiers {
		if strings.TrimSpace(activityType) == "" {
			return fmt.Errorf("config.verifiers contains an empty activity type")
		}
		switch v.Kind {
		case VerifierContent:
			switch v.Mode {
			case ModeAny, ModeNonEmpty, ModeContains, ModeEquals:
			default:
				return fmt.Errorf("verifier %s: unknown content mode %q", activityType, v.Mode)
			}
		case VerifierOracle:
			if strings.TrimSpace(v.Statement) == "" {
				return fmt.Errorf("verifier %s: statement is required for oracle verifiers", activityType)
			}
			needsOracle = true
		default:
			return fmt.Errorf("verifier %s: unknown kind %q", activityType, v.Kind)
		}
	}
	if needsOracle && strings.TrimSpace(c.Oracle.URL) == "" {
		return fmt.Errorf("config.oracle.url is required by oracle verifiers")
	}
	if c.Access.CacheSize < 0 {
		return fmt.Errorf("config.access.cache_size must not be negative")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "earlyadopters.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Chain.Decimals == 0 && !bytes.Contains(data, []byte("decimals")) {
		cfg.Chain.Decimals = 18
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `chain:
  id: 80001
  name: polygon-mumbai
  currency: MATIC
  decimals: 18

verifiers:
  SEND_FEEDBACK:
    kind: content
    mode: non_empty
    description: "Send feedback"
  FOLLOW_TWITTER:
    kind: oracle
    statement: "Twitter user with the handle {content} follows twitter user with the handle {detail}"
    description: "Follow us on Twitter"

oracle:
  url: http://127.0.0.1:8787
  requester: "0x0000000000000000000000000000000000000000"
  bond_currency: "0xe6b8a5cf854791412c1f6efc7caf629f5df1c747"
  timeout_seconds: 10

content:
  ipfs_api: ""
  timeout_seconds: 30

access:
  cache_size: 1024
  redis_addr: ""
  cache_ttl_seconds: 300

ledger:
  allow_deposits: false

log:
  level: info
  format: text

webhooks: []
`
