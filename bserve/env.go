package bserve

import (
	"time"

	"github.com/advdv/bflow"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	healthPath() string
	logLevel() zapcore.Level
	otelExporter() string
	requestTimeout() time.Duration
	shutdownTimeout() time.Duration
	flowConfig() bflow.Config
}

// BaseEnvironment contains the environment variables every bserve app reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	bflow.Config

	Port            int           `env:"BFLOW_PORT" envDefault:"8080"`
	ServiceName     string        `env:"BFLOW_SERVICE_NAME,required,notEmpty"`
	HealthPath      string        `env:"BFLOW_HEALTH_PATH" envDefault:"/healthz"`
	LogLevel        zapcore.Level `env:"BFLOW_LOG_LEVEL" envDefault:"info"`
	OtelExporter    string        `env:"BFLOW_OTEL_EXPORTER" envDefault:"stdout"`
	RequestTimeout  time.Duration `env:"BFLOW_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"BFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (e BaseEnvironment) port() int {
	return e.Port
}

func (e BaseEnvironment) serviceName() string {
	return e.ServiceName
}

func (e BaseEnvironment) healthPath() string {
	return e.HealthPath
}

func (e BaseEnvironment) logLevel() zapcore.Level {
	return e.LogLevel
}

func (e BaseEnvironment) otelExporter() string {
	return e.OtelExporter
}

func (e BaseEnvironment) requestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e BaseEnvironment) shutdownTimeout() time.Duration {
	return e.ShutdownTimeout
}

func (e BaseEnvironment) flowConfig() bflow.Config {
	return e.Config
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}
