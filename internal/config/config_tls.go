package config

import (
	"fmt"
	"os"
)

// Valid TLS modes
const (
	TLSModeDisabled = "disabled"
	TLSModeServer   = "server"
	TLSModeMutual   = "mutual"
)

// Valid client auth policies for mutual TLS
const (
	ClientAuthRequire = "require"
	ClientAuthRequest = "request"
	ClientAuthVerify  = "verify"
)

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	tls := &c.Server.TLS

	switch tls.Mode {
	case TLSModeDisabled:
		return nil
	case TLSModeServer, TLSModeMutual:
		// Continue validation below
	default:
		return fmt.Errorf("invalid TLS mode '%s': must be one of: disabled, server, mutual", tls.Mode)
	}

	if tls.CertFile == "" {
		return fmt.Errorf("TLS mode '%s' requires certFile", tls.Mode)
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("TLS mode '%s' requires keyFile", tls.Mode)
	}
	if err := checkFileReadable(tls.CertFile, "certificate"); err != nil {
		return err
	}
	if err := checkFileReadable(tls.KeyFile, "private key"); err != nil {
		return err
	}

	if tls.Mode == TLSModeMutual {
		if tls.CAFile == "" {
			return fmt.Errorf("mutual TLS requires caFile for client certificate verification")
		}
		if err := checkFileReadable(tls.CAFile, "CA certificate"); err != nil {
			return err
		}

		switch tls.ClientAuthPolicy {
		case "", ClientAuthRequire, ClientAuthRequest, ClientAuthVerify:
			// Valid (empty falls back to "require" in applyTLSDefaults)
		default:
			return fmt.Errorf("invalid client auth policy '%s': must be one of: require, request, verify", tls.ClientAuthPolicy)
		}
	}

	switch tls.MinVersion {
	case "", "1.2", "1.3":
		// Valid (empty falls back to "1.2" in applyTLSDefaults)
	default:
		return fmt.Errorf("invalid TLS minimum version '%s': must be '1.2' or '1.3'", tls.MinVersion)
	}

	return nil
}

// checkFileReadable verifies a configured TLS file exists and is a regular file
func checkFileReadable(path, description string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("TLS %s file '%s' is not accessible: %w", description, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("TLS %s file '%s' is a directory", description, path)
	}
	return nil
}

// IsTLSEnabled returns true when the server should terminate TLS
func (c *Config) IsTLSEnabled() bool {
	return c.Server.TLS.Mode == TLSModeServer || c.Server.TLS.Mode == TLSModeMutual
}

// IsMutualTLS returns true when client certificates are verified
func (c *Config) IsMutualTLS() bool {
	return c.Server.TLS.Mode == TLSModeMutual
}
