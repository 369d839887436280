package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvModel       = "VIGIL_MODEL"
	EnvJujuBinary  = "VIGIL_JUJU_BINARY"
	EnvWaitTimeout = "VIGIL_WAIT_TIMEOUT"
)

// Duration accepts Go duration strings ("90s", "3m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"30s\": %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Juju struct {
	Binary      string   `yaml:"binary" validate:"required"`
	Model       string   `yaml:"model"`
	WaitTimeout Duration `yaml:"wait_timeout" validate:"gte=0"`
}

type Wait struct {
	Delay     Duration `yaml:"delay" validate:"gt=0"`
	Successes int      `yaml:"successes" validate:"gte=1"`
}

type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	// Structured switches console output to slog text records.
	Structured bool `yaml:"structured"`
}

// Remote runs the Juju CLI over SSH instead of locally.
type Remote struct {
	Address    string `yaml:"address" validate:"required,hostname|ip"`
	Port       int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	User       string `yaml:"user" validate:"required"`
	KeyPath    string `yaml:"key_path"`
	Password   string `yaml:"password"`
	KnownHosts string `yaml:"known_hosts"`
}

type Config struct {
	Juju   Juju    `yaml:"juju"`
	Wait   Wait    `yaml:"wait"`
	Log    Log     `yaml:"log"`
	Remote *Remote `yaml:"remote" validate:"omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Juju: Juju{
			Binary:      "juju",
			WaitTimeout: Duration(3 * time.Minute),
		},
		Wait: Wait{
			Delay:     Duration(time.Second),
			Successes: 3,
		},
		Log: Log{Level: "info"},
	}
}

// LoadConfig reads path on top of Default, applies a .env file from the
// working directory if there is one, then the VIGIL_* environment variables,
// and validates the result. A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvModel); v != "" {
		c.Juju.Model = v
	}
	if v := os.Getenv(EnvJujuBinary); v != "" {
		c.Juju.Binary = v
	}
	if v := os.Getenv(EnvWaitTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWaitTimeout, err)
		}
		c.Juju.WaitTimeout = Duration(d)
	}
	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
