package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the structure of the optional YAML config file. Flags and
// environment variables override whatever the file sets.
type Config struct {
	Geofabrik GeofabrikConfig `yaml:"geofabrik"`
	Probe     ProbeConfig     `yaml:"probe"`
	Download  DownloadConfig  `yaml:"download"`
	Log       LogConfig       `yaml:"log"`
}

type GeofabrikConfig struct {
	BaseURL string `yaml:"base_url"`
}

type ProbeConfig struct {
	Delay     Duration `yaml:"delay"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
	Methods   []string `yaml:"methods"`
}

type DownloadConfig struct {
	OutputDir string   `yaml:"output_dir"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration accepts Go duration strings such as "1s" or "500ms" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d : %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func DefaultConfig() Config {
	return Config{
		Geofabrik: GeofabrikConfig{BaseURL: DefaultBaseURL},
		Probe: ProbeConfig{
			Delay:     Duration(time.Second),
			Timeout:   Duration(30 * time.Second),
			UserAgent: "osm-mirror-locator",
			Methods:   []string{"HEAD", "GET"},
		},
		Download: DownloadConfig{
			OutputDir: "data/osm/pbf",
			UserAgent: "osm-mirror-locator",
		},
		Log: LogConfig{Level: "info"},
	}
}

// loadConfig reads the config file at path on top of the defaults. An empty
// path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	configFile, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file : %w", err)
	}

	if err := yaml.Unmarshal(configFile, &cfg); err != nil {
		return cfg, fmt.Errorf("could not unmarshal config file : %w", err)
	}

	return cfg, nil
}

// applyGlobalFlags overrides config values with global flags that were set
// explicitly, either on the command line or through their env vars.
func (c *Config) applyGlobalFlags(cCtx *cli.Context) {
	if cCtx.IsSet("base-url") {
		c.Geofabrik.BaseURL = cCtx.String("base-url")
	}
	if cCtx.IsSet("log-level") {
		c.Log.Level = cCtx.String("log-level")
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Geofabrik.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: geofabrik.base_url %q is not an http(s) URL", ErrInvalidConfig, c.Geofabrik.BaseURL)
	}
	if c.Probe.Delay < 0 {
		return fmt.Errorf("%w: probe.delay must not be negative", ErrInvalidConfig)
	}
	if c.Probe.Timeout < 0 || c.Download.Timeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if len(c.Probe.Methods) == 0 {
		return fmt.Errorf("%w: probe.methods is empty", ErrInvalidConfig)
	}
	for _, m := range c.Probe.Methods {
		switch strings.ToUpper(m) {
		case "HEAD", "GET":
		default:
			return fmt.Errorf("%w: probe method %q is not HEAD or GET", ErrInvalidConfig, m)
		}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: log.level : %v", ErrInvalidConfig, err)
	}
	return nil
}
