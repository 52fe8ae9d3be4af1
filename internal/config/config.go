package config

import "os"

// Provider names.
const (
	ProviderHCloud = "hcloud"
	ProviderMemory = "memory"
)

// Credential store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreS3     = "s3"
)

// Config is the root of the configuration file.
type Config struct {
	Provider    string            `yaml:"provider"`
	HCloud      HCloudConfig      `yaml:"hcloud"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
	Concurrency int               `yaml:"concurrency"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Events      EventsConfig      `yaml:"events"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// HCloudConfig configures the Hetzner Cloud provider.
type HCloudConfig struct {
	// Token falls back to HCLOUD_TOKEN when empty.
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint"`
	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

// DefaultsConfig fills template fields the caller leaves empty.
type DefaultsConfig struct {
	Location    string `yaml:"location"`
	Image       string `yaml:"image"`
	Hardware    string `yaml:"hardware"`
	LoginUser   string `yaml:"loginUser"`
	NetworkCIDR string `yaml:"networkCIDR"`
	SubnetCIDR  string `yaml:"subnetCIDR"`
}

// CredentialsConfig selects where node login credentials are kept.
type CredentialsConfig struct {
	Backend string   `yaml:"backend"`
	Path    string   `yaml:"path"`
	S3      S3Config `yaml:"s3"`
}

// S3Config configures the S3 credential store.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the NATS publisher. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics in Prometheus text format
	// after every command.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderHCloud
	}
	if c.HCloud.Token == "" {
		c.HCloud.Token = os.Getenv("HCLOUD_TOKEN")
	}
	if c.HCloud.RateLimit == 0 {
		c.HCloud.RateLimit = 5
	}
	if c.HCloud.Burst == 0 {
		c.HCloud.Burst = 10
	}
	if c.Defaults.NetworkCIDR == "" {
		c.Defaults.NetworkCIDR = "10.0.0.0/16"
	}
	if c.Defaults.SubnetCIDR == "" {
		c.Defaults.SubnetCIDR = "10.0.1.0/24"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.Credentials.Backend == "" {
		c.Credentials.Backend = StoreMemory
	}
	if c.Credentials.S3.Prefix == "" {
		c.Credentials.S3.Prefix = "nodekit/credentials/"
	}
	if c.Events.NATS.SubjectPrefix == "" {
		c.Events.NATS.SubjectPrefix = "nodekit.events"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}
