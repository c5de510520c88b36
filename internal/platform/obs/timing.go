package obs

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// Level gates how chatty the service logs are.
type Level int32

const (
	LevelQuiet Level = iota
	LevelInfo
	LevelDebug
)

var current atomic.Int32

func init() { current.Store(int32(LevelInfo)) }

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "off", "none":
		return LevelQuiet, nil
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelQuiet:
		return "quiet"
	case LevelDebug:
		return "debug"
	default:
		return "info"
	}
}

func SetLevel(l Level) { current.Store(int32(l)) }

func Enabled(l Level) bool { return Level(current.Load()) >= l }

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Infof logs a key=value line prefixed with the request id.
func Infof(ctx context.Context, format string, args ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	log.Printf("req_id=%s "+format, append([]any{requestID(ctx)}, args...)...)
}

func Debugf(ctx context.Context, format string, args ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	log.Printf("req_id=%s "+format, append([]any{requestID(ctx)}, args...)...)
}

// Time logs the duration of an operation and the error it returned, if any:
//
//	defer obs.Time(ctx, "matrix.Compute")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID := requestID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("req_id=%s op=%s dur=%dms err=%v", reqID, name, dur.Milliseconds(), *errp)
			return
		}
		if Enabled(LevelInfo) {
			log.Printf("req_id=%s op=%s dur=%dms", reqID, name, dur.Milliseconds())
		}
	}
}
