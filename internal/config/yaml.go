// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"finirig/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FINIRIG_"

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	logger   = log.With("config")
)

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it looks for config.yaml in the working directory and falls back to the
// built-in defaults when none exists. Environment overrides are applied after the
// file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFileName); err == nil {
			path = DefaultConfigFileName
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags and the rules the
// tags cannot express. Every failing field is reported.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, e := range verrs {
			errs = append(errs, fmt.Errorf("%s %s", fieldPath(e), formatValidationMessage(e)))
		}
	}

	if c.Monitor.UDPEnabled && c.Monitor.UDPTargetAddress == "" {
		errs = append(errs, errors.New("monitor.udp_target_address is required when UDP is enabled"))
	}

	return errors.Join(errs...)
}

// fieldPath turns the validator namespace "Config.Audio.SampleRate" into
// "Audio.SampleRate".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname_port":
		return "must be a host:port address"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// applyEnvOverrides copies FINIRIG_* variables over the loaded values. A
// variable that is set but unparsable is an error rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	var errs []error

	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = val
			logger.Debugf("overriding %s from env: %s", name, val)
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
			logger.Debugf("overriding %s from env: %v", name, b)
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
			logger.Debugf("overriding %s from env: %d", name, n)
		}
	}
	float := func(name string, dst *float64) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
			logger.Debugf("overriding %s from env: %g", name, f)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
			logger.Debugf("overriding %s from env: %s", name, d)
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("INPUT_DEVICE", &c.Audio.InputDevice)
	str("OUTPUT_DEVICE", &c.Audio.OutputDevice)
	float("SAMPLE_RATE", &c.Audio.SampleRate)
	integer("BUFFER_SIZE", &c.Audio.BufferSize)
	boolean("LOW_LATENCY", &c.Audio.LowLatency)
	duration("MONITOR_INTERVAL", &c.Monitor.Interval)
	boolean("WS_ENABLED", &c.Monitor.WebSocketEnabled)
	str("WS_ADDRESS", &c.Monitor.WebSocketAddress)
	boolean("UDP_ENABLED", &c.Monitor.UDPEnabled)
	str("UDP_TARGET_ADDRESS", &c.Monitor.UDPTargetAddress)

	return errors.Join(errs...)
}
