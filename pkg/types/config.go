package types

import (
	"fmt"
	"time"
)

// Config selects and parameterizes the local store opened by
// LocalStore.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// BusyTimeout bounds how long a statement waits on a locked database.
	// Zero means DefaultBusyTimeout.
	BusyTimeout time.Duration `json:"busy_timeout,omitempty" yaml:"busy_timeout,omitempty"`
}

// BackendSQLite is the only local store backend.
const BackendSQLite = "sqlite"

// DefaultBusyTimeout applies when Config.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// Config validation errors. Both match ErrInvalidArgument.
var (
	ErrBackendEmpty   = fmt.Errorf("%w: backend must not be empty", ErrInvalidArgument)
	ErrBackendUnknown = fmt.Errorf("%w: unknown backend", ErrInvalidArgument)
)

// Validate reports whether the Config can be attached.
func (c Config) Validate() error {
	switch {
	case c.Backend == "":
		return ErrBackendEmpty
	case c.Backend != BackendSQLite:
		return fmt.Errorf("%w %q", ErrBackendUnknown, c.Backend)
	case c.BusyTimeout < 0:
		return fmt.Errorf("%w: busy timeout %s is negative", ErrInvalidArgument, c.BusyTimeout)
	}
	return nil
}

// Timeout returns BusyTimeout, or DefaultBusyTimeout when it is unset.
func (c Config) Timeout() time.Duration {
	if c.BusyTimeout == 0 {
		return DefaultBusyTimeout
	}
	return c.BusyTimeout
}
