package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/internal/rate"
)

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 4 << 20

// ErrorHandler turns a non-2xx response into a backend-specific error.
type ErrorHandler func(status int, body []byte) error

// DecodeError reports a 2xx response whose body did not decode into the
// expected type.
type DecodeError struct {
	Status int
	Body   []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d response: %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Executor runs single-attempt, rate-limited JSON requests. Retry policy
// belongs to the caller.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	tag          string
	errorHandler ErrorHandler
}

// New creates an Executor. tag prefixes log event names. errorHandler may be
// nil, in which case non-2xx responses yield a generic error.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, tag string, errorHandler ErrorHandler) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		tag:          tag,
		errorHandler: errorHandler,
	}
}

// DoJSON waits on the rate limiter bucket for rateLimitKey, sends req once and
// decodes a 2xx body into out. An empty body leaves out untouched.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := e.http.Do(req.WithContext(ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.logger.Warn(e.tag+".http_failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
		return fmt.Errorf("%s %s %s: %w", e.tag, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s read body: %w", e.tag, err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Debug(e.tag+".http_error",
			zap.Int("status", resp.StatusCode),
			zap.String("path", req.URL.Path),
			zap.Duration("latency", elapsed))
		if e.errorHandler != nil {
			return e.errorHandler(resp.StatusCode, body)
		}
		return fmt.Errorf("%s returned %d", e.tag, resp.StatusCode)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.tag+".decode_failed",
				zap.Int("status", resp.StatusCode),
				zap.String("path", req.URL.Path),
				zap.Error(err))
			return &DecodeError{Status: resp.StatusCode, Body: body, Err: err}
		}
	}

	e.logger.Debug(e.tag+".http_success",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", elapsed))
	return nil
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
