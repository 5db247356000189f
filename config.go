package bflow

import (
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
)

// Config holds the app-level settings. Every request works on its own copy, so changing [Context.Config] never
// leaks into the app or into other requests.
type Config struct {
	// Proxy enables trusting X-Forwarded-* headers.
	Proxy bool `env:"BFLOW_PROXY" envDefault:"false"`
	// Env is the deployment environment name.
	Env string `env:"BFLOW_ENV" envDefault:"development"`
	// SubdomainOffset is the number of dot-separated parts of the host to skip when computing subdomains.
	SubdomainOffset int `env:"BFLOW_SUBDOMAIN_OFFSET" envDefault:"2"`
	// PoweredBy is sent as the X-Powered-By header. An empty value disables the header.
	PoweredBy string `env:"BFLOW_POWERED_BY" envDefault:"bflow"`
}

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() Config {
	return Config{
		Env:             "development",
		SubdomainOffset: 2,
		PoweredBy:       "bflow",
	}
}

// LoadConfig parses the configuration from environment variables.
func LoadConfig() (cfg Config, err error) {
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to parse environment")
	}

	return cfg, nil
}
