package polyadicqml

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned by Run when the operator interrupts execution
// and confirms the abort instead of reloading the backends.
var ErrInterrupted = errors.New("interrupted by operator")

// ConfigError represents an invalid combination of options, either at
// construction or at call time. It is fatal and never retried.
type ConfigError struct {
	usrMsg, devMsg string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("usr_msg: %s\ndev_msg: %s", e.usrMsg, e.devMsg)
}

func newConfigError(usrMsg, devMsg string) error { return ConfigError{usrMsg, devMsg} }

// ExecError represents a job that a backend reported as failed or cancelled,
// or a transport fault while talking to a backend. It feeds the retry
// protocol in Run and never surfaces to the caller unless retries are bounded.
type ExecError struct {
	JobID   string
	Backend string
	Status  JobStatus

	cause error
}

func (e ExecError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("job %q on %q: %v", e.JobID, e.Backend, e.cause)
	}
	return fmt.Sprintf("job %q on %q finished as %s", e.JobID, e.Backend, e.Status)
}

func (e ExecError) Unwrap() error { return e.cause }
