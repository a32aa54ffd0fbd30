package reactive

import "log/slog"

// DefaultMaxEffectReruns is how many times a single effect may run within
// one drain before the runtime treats it as an infinite update loop.
const DefaultMaxEffectReruns = 100

// DisposePolicy controls how accesses through stale handles are reported.
type DisposePolicy int

const (
	// DisposePolicyLog logs a warning and treats the access as a no-op.
	// Reads return the last-known value. This is the default.
	DisposePolicyLog DisposePolicy = iota

	// DisposePolicyError returns ErrUseAfterDispose from every
	// error-returning accessor.
	DisposePolicyError
)

// String returns the policy name as used in configuration files.
func (p DisposePolicy) String() string {
	switch p {
	case DisposePolicyLog:
		return "log"
	case DisposePolicyError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseDisposePolicy parses "log" or "error".
func ParseDisposePolicy(s string) (DisposePolicy, bool) {
	switch s {
	case "", "log":
		return DisposePolicyLog, true
	case "error":
		return DisposePolicyError, true
	default:
		return DisposePolicyLog, false
	}
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger          *slog.Logger
	sinks           []EventSink
	maxEffectReruns int
	disposePolicy   DisposePolicy

	// skipEqualWrites is the default equality policy for signals created
	// without an explicit one.
	skipEqualWrites bool

	// debug logs every drain at debug level.
	debug bool
}

func defaultRuntimeOptions() runtimeOptions {
	return runtimeOptions{
		maxEffectReruns: DefaultMaxEffectReruns,
		disposePolicy:   DisposePolicyLog,
	}
}

// WithLogger sets the logger used for diagnostics.
// Default: slog.Default() with component=reactive.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithEventSink adds a sink that receives every runtime event.
// Sinks are called in the order they were added.
func WithEventSink(sink EventSink) Option {
	return func(o *runtimeOptions) {
		if sink != nil {
			o.sinks = append(o.sinks, sink)
		}
	}
}

// WithMaxEffectReruns sets the per-drain rerun limit of a single effect.
// Values below 1 keep the default.
func WithMaxEffectReruns(n int) Option {
	return func(o *runtimeOptions) {
		if n > 0 {
			o.maxEffectReruns = n
		}
	}
}

// WithDisposePolicy sets how stale handle accesses are reported.
func WithDisposePolicy(p DisposePolicy) Option {
	return func(o *runtimeOptions) {
		o.disposePolicy = p
	}
}

// WithEqualitySkip makes signals skip writes of a value equal to the
// current one unless the signal was created with its own policy.
func WithEqualitySkip(skip bool) Option {
	return func(o *runtimeOptions) {
		o.skipEqualWrites = skip
	}
}

// WithDebug enables debug logging of every drain.
func WithDebug(debug bool) Option {
	return func(o *runtimeOptions) {
		o.debug = debug
	}
}
