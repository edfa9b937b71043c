package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/charcount/protocol"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs one line per request: info on
// success, warn for protocol errors the client caused, error for failures.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			fields := []Field{
				F("method", req.Method),
				F("duration", time.Since(start)),
			}
			if tool := toolName(req); tool != "" {
				fields = append(fields, F("tool", tool))
			}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, F("request_id", requestID))
			}
			if addr := protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr); addr != "" {
				fields = append(fields, F("remote_addr", addr))
			}

			switch pe, isProtocol := protocol.AsError(err); {
			case err != nil && isProtocol:
				fields = append(fields, F("code", pe.Code), F("error", pe.Message))
				logger.Warn("request rejected", fields...)
			case err != nil:
				fields = append(fields, F("error", err.Error()))
				logger.Error("request failed", fields...)
			case resp != nil && resp.Error != nil:
				fields = append(fields, F("code", resp.Error.Code))
				logger.Warn("request rejected", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return resp, err
		}
	}
}

func toolName(req *protocol.Request) string {
	if req.Method != protocol.MethodToolsCall || len(req.Params) == 0 {
		return ""
	}
	var params struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(req.Params, &params)
	return params.Name
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
