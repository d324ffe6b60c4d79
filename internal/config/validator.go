package config

import (
	"fmt"
	"slices"
	"strings"
)

var (
	validLogLevels   = []string{"trace", "debug", "info", "warn", "error"}
	validLogFormats  = []string{"json", "console"}
	validLogOutputs  = []string{"stdout", "stderr"}
	validBackoffKind = []string{BackoffConstant, BackoffExponential}
)

// maxRetriesLimit caps forwarder retries.
const maxRetriesLimit = 10

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates bridge configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a bridge configuration.
func ValidateConfig(config *BridgeConfig) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *BridgeConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateMetadata(&config.Metadata)
	v.validatePool(&config.Spec.Pool)
	v.validateForwarder(&config.Spec.Forwarder)
	v.validateDispatcher(&config.Spec.Dispatcher)
	v.validateStreams(&config.Spec.Streams)
	v.validateLogging(&config.Spec.Logging)
	v.validateMetrics(&config.Spec.Metrics)
	v.validateTracing(&config.Spec.Tracing)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateRoot validates root-level fields.
func (v *Validator) validateRoot(config *BridgeConfig) {
	if config.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if config.APIVersion != APIVersion {
		v.addError("apiVersion", fmt.Sprintf("apiVersion must be '%s'", APIVersion))
	}

	if config.Kind == "" {
		v.addError("kind", "kind is required")
	} else if config.Kind != Kind {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", Kind))
	}
}

// validateMetadata validates metadata fields.
func (v *Validator) validateMetadata(metadata *Metadata) {
	if metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validatePool(pool *PoolConfig) {
	if pool.MaxSize < 1 {
		v.addError("spec.pool.maxSize", "maxSize must be at least 1")
	}
	if pool.IdleTimeout < 0 {
		v.addError("spec.pool.idleTimeout", "idleTimeout cannot be negative")
	}
	if pool.HealthCheckInterval < 0 {
		v.addError("spec.pool.healthCheckInterval", "healthCheckInterval cannot be negative")
	}
}

func (v *Validator) validateForwarder(fwd *ForwarderConfig) {
	if n := fwd.Retries(); n < 0 || n > maxRetriesLimit {
		v.addError("spec.forwarder.maxRetries", fmt.Sprintf("maxRetries must be between 0 and %d", maxRetriesLimit))
	}
	if fwd.RetryBackoff < 0 {
		v.addError("spec.forwarder.retryBackoff", "retryBackoff cannot be negative")
	}
	if fwd.BackoffType != "" && !slices.Contains(validBackoffKind, fwd.BackoffType) {
		v.addError("spec.forwarder.backoffType",
			fmt.Sprintf("backoffType must be one of: %s", strings.Join(validBackoffKind, ", ")))
	}
	if fwd.BackoffType == BackoffExponential && fwd.MaxBackoff < fwd.RetryBackoff {
		v.addError("spec.forwarder.maxBackoff", "maxBackoff must not be less than retryBackoff")
	}
}

func (v *Validator) validateDispatcher(d *DispatcherConfig) {
	if d.Workers < 0 {
		v.addError("spec.dispatcher.workers", "workers cannot be negative")
	}
	if d.QueueSize < 0 {
		v.addError("spec.dispatcher.queueSize", "queueSize cannot be negative")
	}
}

func (v *Validator) validateStreams(s *StreamsConfig) {
	if !strings.HasPrefix(s.TrafficPath, "/") {
		v.addError("spec.streams.trafficPath", "trafficPath must start with '/'")
	}
	if !strings.HasPrefix(s.LogsPath, "/") {
		v.addError("spec.streams.logsPath", "logsPath must start with '/'")
	}
	if s.Breaker.MaxFailures < 0 {
		v.addError("spec.streams.breaker.maxFailures", "maxFailures cannot be negative")
	}
	if s.Breaker.OpenTimeout < 0 {
		v.addError("spec.streams.breaker.openTimeout", "openTimeout cannot be negative")
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	if !slices.Contains(validLogLevels, l.Level) {
		v.addError("spec.logging.level",
			fmt.Sprintf("level must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	if !slices.Contains(validLogFormats, l.Format) {
		v.addError("spec.logging.format",
			fmt.Sprintf("format must be one of: %s", strings.Join(validLogFormats, ", ")))
	}
	if !slices.Contains(validLogOutputs, l.Output) {
		v.addError("spec.logging.output",
			fmt.Sprintf("output must be one of: %s", strings.Join(validLogOutputs, ", ")))
	}
}

func (v *Validator) validateMetrics(m *MetricsConfig) {
	if m.Enabled && m.Address == "" {
		v.addError("spec.metrics.address", "address is required when metrics are enabled")
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("spec.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{
		Path:    path,
		Message: message,
	})
}
