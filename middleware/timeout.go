package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/charcount/protocol"
)

// Timeout returns middleware that bounds each request to d. A handler that
// gives up because the deadline passed gets an error naming the method and
// the limit; it still matches context.DeadlineExceeded. Zero disables it.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			resp, err := next(ctx, req)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return nil, fmt.Errorf("%s timed out after %s: %w", req.Method, d, err)
			}
			return resp, err
		}
	}
}
