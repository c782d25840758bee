package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the proxy.
type Config struct {
	Listen string `mapstructure:"listen"`
	// Password gates every API endpoint.  There are no user accounts; one
	// shared password unlocks the proxy.
	Password string `mapstructure:"password"`
	Backend  struct {
		URL string `mapstructure:"url"`
		// ProgressSocket enables the advisory websocket listener.
		ProgressSocket bool `mapstructure:"progress_socket"`
	} `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
	Run     struct {
		PollIntervalMS int `mapstructure:"poll_interval_ms"`
		TimeoutS       int `mapstructure:"timeout_s"`
	} `mapstructure:"run"`
}

// PollInterval returns the poll cadence with the default applied.
func (c *Config) PollInterval() time.Duration {
	if c.Run.PollIntervalMS <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.Run.PollIntervalMS) * time.Millisecond
}

// RunTimeout returns the run deadline with the default applied.
func (c *Config) RunTimeout() time.Duration {
	if c.Run.TimeoutS <= 0 {
		return 600 * time.Second
	}
	return time.Duration(c.Run.TimeoutS) * time.Second
}

// Load reads configuration from config.yaml (working directory or ./config)
// and the environment (COMFY_REMOTE_* variables).  A missing file is fine as
// long as the required values arrive via environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("COMFY_REMOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8189")
	v.SetDefault("backend.url", "http://localhost:8188")
	v.SetDefault("backend.progress_socket", false)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("run.poll_interval_ms", 1500)
	v.SetDefault("run.timeout_s", 600)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	if cfg.Password == "" {
		return nil, errors.New("password must be set (config key \"password\" or COMFY_REMOTE_PASSWORD)")
	}
	return &cfg, nil
}
