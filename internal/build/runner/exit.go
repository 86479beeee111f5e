package runner

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitKind classifies how a run ended.
type ExitKind int

const (
	// Normal means the process exited on its own with an exit code.
	Normal ExitKind = iota
	// SpawnFailure means the process could not be started.
	SpawnFailure
	// Signaled means the process was terminated by a signal.
	Signaled
	// TimedOut means the timeout fired before the process finished.
	TimedOut
)

// String returns the kind name.
func (k ExitKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case SpawnFailure:
		return "spawn failure"
	case Signaled:
		return "signaled"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Exit is the outcome of a run. Exactly one of Code, Reason and Signal is
// meaningful, as selected by Kind.
type Exit struct {
	Kind   ExitKind
	Code   int
	Signal syscall.Signal
	Reason string
}

// Success reports whether the process exited normally with code 0.
func (e Exit) Success() bool {
	return e.Kind == Normal && e.Code == 0
}

// String describes the outcome.
func (e Exit) String() string {
	switch e.Kind {
	case Normal:
		return fmt.Sprintf("exited with code %d", e.Code)
	case SpawnFailure:
		return "failed to start: " + e.Reason
	case Signaled:
		name := unix.SignalName(e.Signal)
		if name == "" {
			name = fmt.Sprintf("signal %d", int(e.Signal))
		}
		return "terminated by " + name
	case TimedOut:
		return "timed out"
	default:
		return e.Kind.String()
	}
}

// SpawnError is returned by Start when the command cannot be launched.
type SpawnError struct {
	Reason string
	Err    error
}

func (e *SpawnError) Error() string {
	return "spawn build command: " + e.Reason
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// exitFromWait classifies the error returned by exec.Cmd.Wait.
func exitFromWait(err error) Exit {
	if err == nil {
		return Exit{Kind: Normal}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return Exit{Kind: Signaled, Signal: status.Signal()}
		}
		return Exit{Kind: Normal, Code: exitErr.ExitCode()}
	}

	return Exit{Kind: SpawnFailure, Reason: err.Error()}
}
