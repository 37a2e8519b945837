package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the apicheck configuration
type Config struct {
	DefaultEnvironment string                  `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Timeout            int                     `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool                   `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int                     `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool                   `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string                  `json:"proxy,omitempty" yaml:"proxy,omitempty"`           // proxy URL for all requests
	Headers            map[string]string       `json:"headers,omitempty" yaml:"headers,omitempty"`       // Default headers for all requests
	Reporters          []string                `json:"reporters,omitempty" yaml:"reporters,omitempty"`   // Output reporters
	OutputDir          string                  `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`   // Directory for output files
	Rate               float64                 `json:"rate,omitempty" yaml:"rate,omitempty"`             // requests per second, 0 is unlimited
	SchemaRoot         string                  `json:"schemaRoot,omitempty" yaml:"schemaRoot,omitempty"` // directory schema files must live under
	Verbose            *bool                   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool                   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Applications       map[string]*Application `json:"applications,omitempty" yaml:"applications,omitempty"`

	// dir is the directory the config was loaded from. Relative
	// application paths are resolved against it.
	dir string
}

// Application groups the test files of one API under a base path and maps
// environment names to base URLs.
type Application struct {
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	BasePath     string            `json:"basePath" yaml:"basePath"`
	Environments map[string]string `json:"environments,omitempty" yaml:"environments,omitempty"`
}

// BaseURL returns the base URL configured for env.
func (a *Application) BaseURL(env string) (string, error) {
	url, ok := a.Environments[env]
	if !ok {
		return "", fmt.Errorf("environment %q not defined (available: %s)", env, strings.Join(a.EnvironmentNames(), ", "))
	}
	return url, nil
}

func (a *Application) EnvironmentNames() []string {
	names := make([]string, 0, len(a.Environments))
	for name := range a.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the SSL validation setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// Application looks up an application by name. Its BasePath is returned
// resolved against the config file's directory.
func (c *Config) Application(name string) (*Application, error) {
	app, ok := c.Applications[name]
	if !ok || app == nil {
		return nil, fmt.Errorf("application %q not found in config", name)
	}
	resolved := *app
	if resolved.BasePath == "" {
		return nil, fmt.Errorf("application %q has no basePath", name)
	}
	if !filepath.IsAbs(resolved.BasePath) && c.dir != "" {
		resolved.BasePath = filepath.Join(c.dir, resolved.BasePath)
	}
	return &resolved, nil
}

// ApplicationNames returns the configured application names, sorted.
func (c *Config) ApplicationNames() []string {
	names := make([]string, 0, len(c.Applications))
	for name := range c.Applications {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	"apicheck.yaml",
	"apicheck.yml",
	".apicheck.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	config.dir = filepath.Dir(path)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate checks values no flag can repair later.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Rate)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative, got %d", c.MaxRedirects)
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("proxy %q is not an absolute URL", c.Proxy)
		}
	}
	for _, name := range c.ApplicationNames() {
		app := c.Applications[name]
		if app == nil || app.BasePath == "" {
			return fmt.Errorf("application %q has no basePath", name)
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.SchemaRoot != "" {
		result.SchemaRoot = other.SchemaRoot
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.dir != "" {
		result.dir = other.dir
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	// Merge reporters
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	if len(other.Applications) > 0 {
		apps := make(map[string]*Application, len(result.Applications)+len(other.Applications))
		for k, v := range result.Applications {
			apps[k] = v
		}
		for k, v := range other.Applications {
			apps[k] = v
		}
		result.Applications = apps
	}

	return &result
}

// SaveConfig saves the configuration to a file, as JSON or YAML depending
// on the extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
