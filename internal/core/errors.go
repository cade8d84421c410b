package core

// ConfigurationError signals a missing required secret or precondition.
// Fatal to the operation that raised it; never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
