package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{ProviderHCloud, ProviderMemory}, c.Provider) {
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.Provider == ProviderHCloud && c.HCloud.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("hcloud.rateLimit must not be negative"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1"))
	}
	for name, cidr := range map[string]string{
		"defaults.networkCIDR": c.Defaults.NetworkCIDR,
		"defaults.subnetCIDR":  c.Defaults.SubnetCIDR,
	} {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	switch c.Credentials.Backend {
	case StoreMemory:
	case StoreBadger:
		if c.Credentials.Path == "" {
			errs = append(errs, fmt.Errorf("credentials.path is required for the badger backend"))
		}
	case StoreS3:
		if c.Credentials.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("credentials.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend))
	}
	if !slices.Contains([]string{"console", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("unknown logging format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
