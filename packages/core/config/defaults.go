package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Timeout:            30000, // 30 seconds
		FollowRedirects:    BoolPtr(true),
		MaxRedirects:       10,
		ValidateSSL:        BoolPtr(true),
		Proxy:              "",
		Headers:            nil,
		Reporters:          []string{"console"},
		OutputDir:          "",
		Rate:               0,
		Verbose:            BoolPtr(false),
		NoColor:            BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.DefaultEnvironment == defaults.DefaultEnvironment &&
		c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		(c.MaxRedirects == 0 || c.MaxRedirects == defaults.MaxRedirects) &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		len(c.Applications) == 0 &&
		c.OutputDir == defaults.OutputDir &&
		c.Rate == defaults.Rate &&
		c.SchemaRoot == defaults.SchemaRoot &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
