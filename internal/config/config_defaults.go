package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Analysis service defaults
	v.SetDefault("analysis.baseURL", "http://localhost:8080")
	v.SetDefault("analysis.timeout", 60*time.Second)
	v.SetDefault("analysis.maxRetries", 1)

	// Operation-specific defaults. The initial analyze carries a file upload
	// and a full matching pass, so it gets the longest budget. Bulk pages are
	// cheap reads.
	v.SetDefault("analysis.analyze.timeout", 120*time.Second)
	v.SetDefault("analysis.improve.timeout", 90*time.Second)
	v.SetDefault("analysis.bulk.timeout", 30*time.Second)

	// Circuit breaker defaults per operation family
	for _, op := range []string{"analyze", "improve", "bulk"} {
		v.SetDefault("analysis."+op+".circuitBreaker.enabled", true)
		v.SetDefault("analysis."+op+".circuitBreaker.maxRequests", 3)
		v.SetDefault("analysis."+op+".circuitBreaker.interval", 60*time.Second)
		v.SetDefault("analysis."+op+".circuitBreaker.timeout", 30*time.Second)
		v.SetDefault("analysis."+op+".circuitBreaker.minRequests", 5)
		v.SetDefault("analysis."+op+".circuitBreaker.failureThreshold", 0.6)
	}

	// Cache defaults (empty path resolves to $HOME/.matchpoint/cache.db)
	v.SetDefault("cache.path", "")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8888")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 180*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)

	// TLS defaults
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.clientAuthPolicy", "require")
	v.SetDefault("server.tls.autoReload.enabled", false)
	v.SetDefault("server.tls.autoReload.debounceDelay", 5*time.Second)

	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", true)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App defaults
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", int64(10*1024*1024)) // 10MB

	// Vault defaults
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.analysisKey", "")

	// Observability defaults
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "matchpoint")
	v.SetDefault("observability.serviceVersion", "dev")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 30*time.Second)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", false)
	v.SetDefault("observability.customMetrics.analysisCalls.enabled", true)
	v.SetDefault("observability.customMetrics.analysisCalls.trackDuration", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackCertExpiry", true)
	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.healthCheck.timeout", 5*time.Second)
}
