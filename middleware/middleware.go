package middleware

import (
	"time"

	"github.com/felixgeelhaar/charcount/protocol"
)

// StackConfig selects the optional stages of Stack.
type StackConfig struct {
	Logger Logger
	// Timeout bounds each request. Zero disables it.
	Timeout time.Duration
	// MaxParamsBytes rejects larger params. Zero disables the check.
	MaxParamsBytes int64
	// RateLimit is tools/call requests per second per client. Zero disables it.
	RateLimit int
	RateBurst int
	// OTel options; nil skips tracing and metrics.
	OTel []OTelOption
}

// Stack returns the production middleware, outermost first: recovery,
// request ids, timeout, logging, telemetry, size limit and the per-client
// rate limit on tools/call.
func Stack(cfg StackConfig) []Middleware {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}

	stack := []Middleware{
		Recover(WithRecoverLogger(logger)),
		RequestID(),
		Timeout(cfg.Timeout),
		Logging(logger),
	}
	if cfg.OTel != nil {
		stack = append(stack, OTel(cfg.OTel...))
	}
	if cfg.MaxParamsBytes > 0 {
		stack = append(stack, SizeLimit(cfg.MaxParamsBytes, WithSizeLimitLogger(logger)))
	}
	if cfg.RateLimit > 0 {
		stack = append(stack, ForMethods(
			RateLimitByClient(cfg.RateLimit, cfg.RateBurst, WithRateLimitLogger(logger)),
			protocol.MethodToolsCall,
		))
	}
	return stack
}

// DefaultStack returns recovery, request ids and logging.
func DefaultStack(logger Logger) []Middleware {
	return Stack(StackConfig{Logger: logger})
}

// DefaultStackWithTimeout returns the default stack with a timeout.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return Stack(StackConfig{Logger: logger, Timeout: timeout})
}
