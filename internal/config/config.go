package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Chain   ChainConfig   `yaml:"chain"`
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Store   StoreConfig   `yaml:"store"`
	Auth    AuthConfig    `yaml:"auth"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

type ChainConfig struct {
	LCDURL       string `yaml:"lcd_url"`
	ChainID      string `yaml:"chain_id"`
	AgentAddress string `yaml:"agent_address"`
}

type LLMConfig struct {
	HostURL string `yaml:"host_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type StorageConfig struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	BucketUUID string `yaml:"bucket_uuid"`
	BaseURL    string `yaml:"base_url"`
}

type StoreConfig struct {
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key"`
	RedisAddr   string `yaml:"redis_addr"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	TokenTTLHrs int    `yaml:"token_ttl_hours"`
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return &cfg, nil
}

// FromEnv builds a config from environment variables alone, for deployments
// that don't ship a config file.
func FromEnv() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8000"
	}
	return cfg
}

// applyEnv overlays environment variables onto the loaded file values.
// Secrets are expected to come from the environment, not the yaml file.
func (c *Config) applyEnv() {
	overlay(&c.Server.Port, "PORT")
	overlay(&c.Chain.LCDURL, "LCD_URL")
	overlay(&c.Chain.ChainID, "CHAIN_ID")
	overlay(&c.Chain.AgentAddress, "AGENT_ADDRESS")
	overlay(&c.LLM.HostURL, "SECRET_AI_URL")
	overlay(&c.LLM.APIKey, "SECRET_AI_API_KEY")
	overlay(&c.LLM.Model, "OLLAMA_MODEL")
	overlay(&c.Storage.APIKey, "APILLON_API_KEY")
	overlay(&c.Storage.APISecret, "APILLON_API_SECRET")
	overlay(&c.Storage.BucketUUID, "APILLON_BUCKET_UUID")
	overlay(&c.Storage.BaseURL, "APILLON_BASE_URL")
	overlay(&c.Store.SupabaseURL, "SUPABASE_URL")
	overlay(&c.Store.SupabaseKey, "SUPABASE_SERVICE_KEY")
	overlay(&c.Store.RedisAddr, "REDIS_ADDR")
	overlay(&c.Auth.JWTSecret, "JWT_SECRET")

	if c.Chain.LCDURL == "" {
		c.Chain.LCDURL = "https://rpc.ankr.com/http/scrt_cosmos"
	}
	if c.Chain.ChainID == "" {
		c.Chain.ChainID = "secret-4"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3"
	}
	if c.Auth.TokenTTLHrs == 0 {
		c.Auth.TokenTTLHrs = 24
	}
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the settings required to reach external services are
// present. Called once at startup so misconfiguration fails fast.
func (c *Config) Validate() error {
	if c.Chain.AgentAddress == "" {
		return fmt.Errorf("config: agent address is not set")
	}
	if c.LLM.HostURL == "" || c.LLM.APIKey == "" {
		return fmt.Errorf("config: LLM host URL and API key must be set")
	}
	if c.Storage.APIKey == "" || c.Storage.APISecret == "" || c.Storage.BucketUUID == "" {
		return fmt.Errorf("config: storage API key, secret and bucket UUID must be set")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT secret is not set")
	}
	return nil
}
