// Package pkg provides shared utilities for the psh sensor hub stack.
//
// This package contains common functionality used by the hub core, the
// transports and the command-line tool:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for the command/response protocol
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentHub, "firmware loaded", "version", v)
//
// # Errors
//
// Protocol errors are sentinel values, and a firmware result code is
// reported as a [*RemoteError] that matches [ErrRemote]:
//
//	if errors.Is(err, pkg.ErrTimeout) {
//	    // firmware state of the command is unknown
//	}
package pkg
