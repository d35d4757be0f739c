package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration, merged from file, environment
// and flags with flags taking the highest precedence.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		TLS     struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Uploads struct {
		Dir     string `yaml:"dir"`
		MaxSize string `yaml:"max_size"` // human-readable, e.g. "8MB"
	} `yaml:"uploads"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		APIKeys struct {
			Customer []string `yaml:"customer"`
			Agent    []string `yaml:"agent"`
		} `yaml:"api_keys"`
		SigningKeys []string `yaml:"signing_keys"`
	} `yaml:"security"`
	Limits struct {
		MaxTextRunes int `yaml:"max_text_runes"`
		MaxURLLen    int `yaml:"max_url_len"`
	} `yaml:"limits"`
	Sweeper struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
	} `yaml:"sweeper"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if len(c.Security.APIKeys.Customer)+len(c.Security.APIKeys.Agent) == 0 {
		return fmt.Errorf("at least one API key must be configured")
	}
	if len(c.Security.APIKeys.Customer) > 0 && len(c.Security.SigningKeys) == 0 {
		return fmt.Errorf("customer API keys require at least one signing key")
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("tls cert_file and key_file must be set together")
	}
	return nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns
// their values along with which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// LoadEnvOverrides applies SKYLINEE_* environment overrides onto cfg and
// reports whether any env var was used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	if v := os.Getenv("SKYLINEE_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("SKYLINEE_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("SKYLINEE_UPLOADS_DIR"); v != "" {
		envUsed = true
		cfg.Uploads.Dir = v
	}
	if v := os.Getenv("SKYLINEE_UPLOADS_MAX_SIZE"); v != "" {
		envUsed = true
		cfg.Uploads.MaxSize = v
	}
	if v := os.Getenv("SKYLINEE_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("SKYLINEE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("SKYLINEE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("SKYLINEE_CUSTOMER_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Customer = parseList(v)
	}
	if v := os.Getenv("SKYLINEE_AGENT_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Agent = parseList(v)
	}
	if v := os.Getenv("SKYLINEE_SIGNING_KEYS"); v != "" {
		envUsed = true
		cfg.Security.SigningKeys = parseList(v)
	}
	if v := os.Getenv("SKYLINEE_SWEEPER_CRON"); v != "" {
		envUsed = true
		cfg.Sweeper.Enabled = true
		cfg.Sweeper.Cron = v
	}
	if c := os.Getenv("SKYLINEE_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("SKYLINEE_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	if v := os.Getenv("SKYLINEE_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective loads the config file at path (a missing file yields an
// empty config) and applies environment overrides.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and SKYLINEE_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("SKYLINEE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// KeySet turns a key list into the set form the auth middleware consumes.
func KeySet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}
