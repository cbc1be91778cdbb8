package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// StandingCover defines a recurring coverage requirement that define-cover
// expands into concrete bookings
type StandingCover struct {
	// Key identifies the rule; it namespaces the generated cover references
	Key string `yaml:"key" validate:"required"`

	RRule        string `yaml:"rrule" validate:"required"`
	OrgID        string `yaml:"orgID" validate:"required,uuid4"`
	ClientID     string `yaml:"clientID" validate:"required"`
	SitePostcode string `yaml:"sitePostcode" validate:"required"`

	StartTime     string  `yaml:"startTime" validate:"required,len=5"`
	EndTime       string  `yaml:"endTime" validate:"required,len=5"`
	RequiredHours float64 `yaml:"requiredHours" validate:"required,gt=0"`

	RequiresConfinedSpace bool `yaml:"requiresConfinedSpace,omitempty"`
	RequiresTrauma        bool `yaml:"requiresTrauma,omitempty"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// ListenAddr is the bind address for serve mode
	ListenAddr string `yaml:"listenAddr,omitempty"`

	StandingCover []StandingCover `yaml:"standingCover,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from sitemedic_config.yaml,
// looking in the current directory first, then the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the configuration for a named environment
// (sitemedic_config.<env>.yaml), falling back to the unsuffixed file name
// when env is empty
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for i, cover := range cfg.StandingCover {
		if _, err := rrule.StrToRRule(cover.RRule); err != nil {
			return fmt.Errorf("invalid rrule in standingCover[%d]: %w", i, err)
		}
	}

	return nil
}

// findConfigFile searches for the config file in the current directory and
// the user's home directory
func findConfigFile(env string) (string, error) {
	configFileName := "sitemedic_config.yaml"
	if env != "" {
		configFileName = fmt.Sprintf("sitemedic_config.%s.yaml", env)
	}

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
