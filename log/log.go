// Package log is a minimal structured logger in the call-site shape used
// throughout this codebase: log.Info("message", "key", value, "key2", value2).
// Output is logfmt-encoded, one line per record, written to the package's
// configured writer (stderr by default).
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

// Level identifies a log severity.
type Level int

const (
	LevelCrit Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelCrit:
		return "crit"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	minimum           = LevelInfo
)

// SetOutput redirects all future log output. Tests use this to capture
// records instead of writing to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minimum = l
}

func log(level Level, msg string, ctx ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level > minimum {
		return
	}
	enc := logfmt.NewEncoder(out)
	_ = enc.EncodeKeyval("t", time.Now().UTC().Format(time.RFC3339Nano))
	_ = enc.EncodeKeyval("lvl", level.String())
	_ = enc.EncodeKeyval("msg", msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		_ = enc.EncodeKeyval(fmt.Sprint(ctx[i]), ctx[i+1])
	}
	if len(ctx)%2 == 1 {
		_ = enc.EncodeKeyval(fmt.Sprint(ctx[len(ctx)-1]), "MISSING")
	}
	_ = enc.EndRecord()
}

// Trace logs at trace level.
func Trace(msg string, ctx ...interface{}) { log(LevelTrace, msg, ctx...) }

// Debug logs at debug level.
func Debug(msg string, ctx ...interface{}) { log(LevelDebug, msg, ctx...) }

// Info logs at info level.
func Info(msg string, ctx ...interface{}) { log(LevelInfo, msg, ctx...) }

// Warn logs at warn level.
func Warn(msg string, ctx ...interface{}) { log(LevelWarn, msg, ctx...) }

// Error logs at error level.
func Error(msg string, ctx ...interface{}) { log(LevelError, msg, ctx...) }

// Crit logs at critical level and terminates the process, matching the
// go-ethereum-style convention that Crit is fatal.
func Crit(msg string, ctx ...interface{}) {
	log(LevelCrit, msg, ctx...)
	os.Exit(1)
}
