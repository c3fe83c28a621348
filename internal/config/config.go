package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env         string          `yaml:"env" env:"TT_ENV" env-default:"local"`
	StoragePath string          `yaml:"storage_path" env:"TT_STORAGE_PATH" env-default:"./data/team-tracker.db"`
	Log         LogConfig       `yaml:"log"`
	Server      ServerConfig    `yaml:"server"`
	Auth        AuthConfig      `yaml:"auth"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	Client      ClientConfig    `yaml:"client"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TT_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"TT_LOG_FORMAT" env-default:"json"`
}

// ServerConfig timeouts are in seconds.
type ServerConfig struct {
	Address          string `yaml:"address" env:"TT_SERVER_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout      int    `yaml:"read_timeout" env:"TT_SERVER_READ_TIMEOUT" env-default:"15"`
	WriteTimeout     int    `yaml:"write_timeout" env:"TT_SERVER_WRITE_TIMEOUT" env-default:"15"`
	IdleTimeout      int    `yaml:"idle_timeout" env:"TT_SERVER_IDLE_TIMEOUT" env-default:"60"`
	OperationTimeout int    `yaml:"operation_timeout" env:"TT_SERVER_OPERATION_TIMEOUT" env-default:"5"`
	EventBuffer      int    `yaml:"event_buffer" env:"TT_SERVER_EVENT_BUFFER" env-default:"64"`
}

type AuthConfig struct {
	// SessionTTL is in hours.
	SessionTTL int `yaml:"session_ttl" env:"TT_AUTH_SESSION_TTL" env-default:"720"`
}

type ReconcileConfig struct {
	// Interval is in seconds, MaxAge in hours.
	Interval int `yaml:"interval" env:"TT_RECONCILE_INTERVAL" env-default:"30"`
	MaxAge   int `yaml:"max_age" env:"TT_RECONCILE_MAX_AGE" env-default:"168"`
}

type ClientConfig struct {
	BaseURL string `yaml:"base_url" env:"TT_CLIENT_BASE_URL" env-default:"http://localhost:8080"`
	Token   string `yaml:"token" env:"TT_CLIENT_TOKEN"`
	// Timeout is in seconds.
	Timeout int `yaml:"timeout" env:"TT_CLIENT_TIMEOUT" env-default:"10"`
}

func (c ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

func (c ServerConfig) IdleTimeoutDuration() time.Duration {
	return time.Duration(c.IdleTimeout) * time.Second
}

func (c ServerConfig) OperationTimeoutDuration() time.Duration {
	return time.Duration(c.OperationTimeout) * time.Second
}

func (c AuthConfig) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Hour
}

func (c ReconcileConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

func (c ReconcileConfig) MaxAgeDuration() time.Duration {
	return time.Duration(c.MaxAge) * time.Hour
}

func (c ClientConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// LoadConfig reads the YAML file at path with environment overrides. When the
// file does not exist only the environment and defaults are used.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			return &cfg, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}

// SaveToken writes client.token into the YAML file at path, keeping every
// other key and comment in place. The file is created when missing.
func SaveToken(path, token string) error {
	var doc yaml.Node

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config file root is not a mapping")
	}

	client := mappingValue(root, "client")
	if client == nil {
		client = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		root.Content = append(root.Content, scalar("client"), client)
	}
	if client.Kind == yaml.ScalarNode && client.Tag == "!!null" {
		client.Kind = yaml.MappingNode
		client.Tag = "!!map"
		client.Value = ""
	}
	if client.Kind != yaml.MappingNode {
		return fmt.Errorf("config key client is not a mapping")
	}

	if tokenNode := mappingValue(client, "token"); tokenNode != nil {
		tokenNode.Kind = yaml.ScalarNode
		tokenNode.Tag = "!!str"
		tokenNode.Value = token
		tokenNode.Style = yaml.DoubleQuotedStyle
	} else {
		value := scalar(token)
		value.Style = yaml.DoubleQuotedStyle
		client.Content = append(client.Content, scalar("token"), value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode config file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config file: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
