package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout returns middleware that sets a context deadline on each
// incoming request. If the deadline is exceeded before the handler
// completes, a 504 Gateway Timeout response is sent and any writes the
// still-running handler makes afterwards are discarded, in the manner of
// http.TimeoutHandler. Handlers that need more time can derive a new
// context with a longer deadline from the request context.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			// All handler writes go through the guard so the timeout path
			// never races the handler goroutine on the response.
			w := &deadlineWriter{inner: c.Response().Writer}
			c.Response().Writer = w

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.sendTimeout()
					return nil
				}
				// Other cancellation reasons (client disconnect) surface
				// as the context error.
				return ctx.Err()
			}
		}
	}
}

// deadlineWriter serializes access to the response. Once the timeout
// response has gone out the handler's late writes are swallowed; once the
// handler has committed a response the timeout path stays silent.
type deadlineWriter struct {
	inner http.ResponseWriter

	mu        sync.Mutex
	committed bool
	timedOut  bool
}

func (w *deadlineWriter) Header() http.Header { return w.inner.Header() }

func (w *deadlineWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	w.committed = true
	w.inner.WriteHeader(code)
}

func (w *deadlineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	w.committed = true
	return w.inner.Write(b)
}

func (w *deadlineWriter) sendTimeout() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timedOut = true
	if w.committed {
		return
	}
	h := w.inner.Header()
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.inner.WriteHeader(http.StatusGatewayTimeout)
	w.inner.Write([]byte(`{"error":"request processing exceeded the allowed time limit"}`))
}
