package memory

import "fmt"

// ConfigError reports an invalid configuration value. It surfaces at
// construction time only; once a Manager exists its configuration is valid
// for the lifetime of the instance.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("memory config: %s: %s", e.Field, e.Reason)
}

// StoreError wraps a storage failure with the operation that produced it.
// Store implementations return it for connection, schema, and I/O
// failures; the Manager converts it to a safe default at the facade
// boundary.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("memory store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
