// Package log provides the kernel's abstract logging sink. It wraps a
// no-allocation Printf implementation (safe to call before the Go runtime's
// own allocator is up) with the three-level vocabulary required by the
// memory core's external logging contract.
//
// The sink itself is a thin wrapper around the VGA writer reached through
// hal.ActiveTerminal; actual framebuffer handling lives outside this core
// and must never be called back into from this package.
package log

import (
	"github.com/kernelcore/memkernel/kernel/driver/video/console"
	"github.com/kernelcore/memkernel/kernel/hal"
)

// Level identifies the severity of a log message.
type Level uint8

const (
	// Info reports routine progress (boot milestones, stats).
	Info Level = iota
	// Warn reports a recoverable anomaly.
	Warn
	// Error reports a condition that is about to escalate to a panic.
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERR"
	default:
		return "?"
	}
}

// errorFg and errorBg highlight Error-level messages so they stand out on
// the panic path, where the terminal is the only diagnostic surface left.
const (
	errorFg = console.LightRed
	errorBg = console.Black

	defaultFg = console.LightGrey
	defaultBg = console.Black
)

// Logf formats and emits a leveled message. It never allocates and never
// blocks; callers in the memory core treat it as fire-and-forget.
func Logf(level Level, format string, args ...interface{}) {
	if level == Error {
		hal.ActiveTerminal.SetColor(errorFg, errorBg)
	}

	Printf("[%s] ", level.String())
	Printf(format, args...)

	if level == Error {
		hal.ActiveTerminal.SetColor(defaultFg, defaultBg)
	}
}
