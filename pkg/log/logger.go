package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Only the first stack line is parsed: "goroutine 123 [running]:".
	stackBufSize = 32
	// Shortest stack header that can carry a goroutine id.
	minStackHeaderLen = 12
	// len("goroutine ").
	goroutinePrefixLen = 10

	consoleTimeFormat = "15:04:05"
)

var (
	Logger zerolog.Logger

	stackBufPool = sync.Pool{New: func() interface{} { return make([]byte, stackBufSize) }}

	configMu sync.Mutex
	output   io.Writer = os.Stderr
	jsonMode bool
	level    = zerolog.InfoLevel
)

func init() {
	rebuild()
}

// goroutineID extracts the current goroutine id from the runtime stack header.
func goroutineID() string {
	buf, ok := stackBufPool.Get().([]byte)
	if !ok {
		return "unknown"
	}
	defer stackBufPool.Put(buf) //nolint:staticcheck // buf is a slice, this is the correct usage

	n := runtime.Stack(buf, false)
	if n < minStackHeaderLen {
		return "unknown"
	}

	idx := goroutinePrefixLen
	start := idx
	for idx < n && buf[idx] >= '0' && buf[idx] <= '9' {
		idx++
	}
	if idx > start {
		return string(buf[start:idx])
	}
	return "unknown"
}

// rebuild recreates Logger from the current output settings. Callers hold configMu
// or run during init.
func rebuild() {
	var writer io.Writer = output
	if !jsonMode {
		writer = zerolog.ConsoleWriter{Out: output, TimeFormat: consoleTimeFormat}
	}

	Logger = zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("goid", goroutineID())
		}))

	log.Logger = Logger
}

// Info starts an info level event.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error starts an error level event.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn starts a warning level event.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug starts a debug level event.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal starts a fatal level event; Msg exits the process.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	configMu.Lock()
	defer configMu.Unlock()
	level = zerolog.DebugLevel
	rebuild()
}

// SetLevel parses one of debug, info, warn, error and applies it.
func SetLevel(name string) error {
	parsed, err := ParseLevel(name)
	if err != nil {
		return err
	}

	configMu.Lock()
	defer configMu.Unlock()
	level = parsed
	rebuild()
	return nil
}

// ParseLevel converts a textual level into a zerolog level.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", name)
	}
}

// SetJSON toggles between JSON lines and the colored console writer.
func SetJSON(enabled bool) {
	configMu.Lock()
	defer configMu.Unlock()
	jsonMode = enabled
	rebuild()
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	configMu.Lock()
	defer configMu.Unlock()
	output = w
	rebuild()
}
