package main

import (
	"errors"
	"fmt"
)

// FaultKind classifies a failure so retry loops and callers can decide
// what to do without inspecting error strings.
type FaultKind int

const (
	// FaultNetwork covers timeouts and connection errors. Always retryable.
	FaultNetwork FaultKind = iota
	// FaultSession means the remote site no longer recognizes our
	// authentication. Handled by renewing the session, not by the caller.
	FaultSession
	// FaultProtocol means the response did not have the expected shape:
	// missing CSRF token, malformed JSON, absent operation token.
	// Retryable a bounded number of times unless marked permanent.
	FaultProtocol
	// FaultPrecondition means the configuration or account state makes the
	// operation impossible (no trip for today, bonus not available).
	// Never retried.
	FaultPrecondition
	// FaultServer is a 5xx from the remote site. Retried with a session
	// renewal interposed.
	FaultServer
)

func (k FaultKind) String() string {
	switch k {
	case FaultNetwork:
		return "network"
	case FaultSession:
		return "session"
	case FaultProtocol:
		return "protocol"
	case FaultPrecondition:
		return "precondition"
	case FaultServer:
		return "server"
	}
	return "unknown"
}

// Fault is the one error type that crosses component boundaries.
type Fault struct {
	Kind      FaultKind
	Permanent bool // set when a normally-retryable kind must not be retried
	Err       error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Kind.String() + " fault"
	}
	return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func netFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultNetwork, Err: fmt.Errorf(format, args...)}
}

func sessionFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultSession, Err: fmt.Errorf(format, args...)}
}

func protocolFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultProtocol, Err: fmt.Errorf(format, args...)}
}

func preconditionFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultPrecondition, Err: fmt.Errorf(format, args...)}
}

func serverFault(format string, args ...any) *Fault {
	return &Fault{Kind: FaultServer, Err: fmt.Errorf(format, args...)}
}

// permanent marks a fault as non-retryable regardless of kind.
func permanent(f *Fault) *Fault {
	f.Permanent = true
	return f
}

// faultKind extracts the kind of err, defaulting to FaultNetwork for
// plain transport errors that were not classified at the call site.
func faultKind(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultNetwork
}

// isRetryableFault reports whether the saga's outer loop may spend a
// transient-retry slot on err. Precondition faults and faults marked
// permanent abort immediately; session faults are handled by renewal
// inside the loop, so they count as retryable here.
func isRetryableFault(err error) bool {
	if err == nil {
		return false
	}
	var f *Fault
	if !errors.As(err, &f) {
		// Unclassified errors are treated as transport problems.
		return true
	}
	if f.Permanent {
		return false
	}
	switch f.Kind {
	case FaultNetwork, FaultServer, FaultProtocol, FaultSession:
		return true
	}
	return false
}
