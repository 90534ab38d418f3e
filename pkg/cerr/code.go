// Package cerr gives the shell a small closed error taxonomy instead of
// raw errors.New calls, so the executor, builtins, and status server can
// all agree on what a given failure should look like to a user and to
// the logs.
package cerr

import "net/http"

// Code classifies a shell-level error. It follows the taxonomy from the
// executor's error-handling design: parse warnings are swallowed at the
// source and never reach here.
type Code int

const (
	OK Code = iota
	// BuiltinUsage is a built-in invoked with bad arguments.
	BuiltinUsage
	// SyscallFailure covers fork/pipe/dup/exec failures on the host.
	SyscallFailure
	// NotFound is something looked up by name that does not exist: an
	// alias, a variable, a history entry or match, or a stored object.
	NotFound
	// JobNotFound is an unknown job id passed to fg/bg.
	JobNotFound
	// PersistenceFailure covers history/config load-save errors, which are
	// always best-effort and never fatal to the shell.
	PersistenceFailure
	// Internal is anything else.
	Internal
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case BuiltinUsage:
		return "builtin_usage"
	case SyscallFailure:
		return "syscall_failure"
	case NotFound:
		return "not_found"
	case JobNotFound:
		return "job_not_found"
	case PersistenceFailure:
		return "persistence_failure"
	default:
		return "internal"
	}
}

// HTTPCode maps a Code to the status code the status server reports it as.
func (c Code) HTTPCode() int {
	switch c {
	case OK:
		return http.StatusOK
	case BuiltinUsage:
		return http.StatusBadRequest
	case NotFound, JobNotFound:
		return http.StatusNotFound
	case SyscallFailure, PersistenceFailure, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode is the process exit status conventionally associated with a
// Code, per the external-interfaces exit code contract (0 clean, 127
// command-not-found, otherwise the child's own status).
func (c Code) ExitCode() int {
	switch c {
	case OK:
		return 0
	case NotFound:
		return 127
	default:
		return 1
	}
}
