package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	isDevelopment = false // if running in debug mode

	logFile io.Writer = nil

	AdHocLogger zerolog.Logger

	mu sync.Mutex

	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

func init() {
	// Create a general logger that can be easily accessed for
	// when you do not want to create a new logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	AdHocLogger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "ad-hoc-logger").Caller().Logger()
}

// Setup builds the process logger. It also replaces zerolog's global logger
// so packages logging through zerolog/log pick the same output up.
func Setup(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stderr
	if isDevelopment {
		// Set up zerolog for development mode (human-readable logs)
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%5s]", i))
			},
			FormatMessage: func(i any) string {
				return fmt.Sprintf("| %s |", i)
			},
			FormatCaller: func(i any) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
			PartsExclude: []string{
				zerolog.TimestampFieldName,
			}}
	}
	if logFile != nil {
		// Use multi-writer for file and readable console output
		out = zerolog.MultiLevelWriter(out, logFile)
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if isDevelopment {
		ctx = ctx.Caller()
	}
	globalLogger = ctx.Logger()
	log.Logger = globalLogger
	return nil
}

// GetLogger returns the process logger tagged with a service name.
func GetLogger(serviceName string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger.With().Str("service", serviceName).Logger()
}

func SetDevelopment(value bool) {
	mu.Lock()
	defer mu.Unlock()
	isDevelopment = value
}

func SetLogFile(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logFile = w
}
