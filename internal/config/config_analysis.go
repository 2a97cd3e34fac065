package config

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationConfig) {
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.Analysis.Timeout
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.Analysis.MaxRetries
	}
}

// GetAnalyzeConfig returns the client configuration for the initial
// upload-and-analyze operation with fallback to global config
func (c *Config) GetAnalyzeConfig() OperationConfig {
	config := c.Analysis.Analyze
	c.applyOperationDefaults(&config)
	return config
}

// GetImproveConfig returns the client configuration for auto-improve
// operations with fallback to global config
func (c *Config) GetImproveConfig() OperationConfig {
	config := c.Analysis.Improve
	c.applyOperationDefaults(&config)
	return config
}

// GetBulkConfig returns the client configuration for paginated re-analysis
// and skill extraction with fallback to global config
func (c *Config) GetBulkConfig() OperationConfig {
	config := c.Analysis.Bulk
	c.applyOperationDefaults(&config)
	return config
}
