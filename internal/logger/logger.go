package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dvcrn/authclient/internal/env"
	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

var (
	once   sync.Once
	logger *zerolog.Logger
)

// Get returns the process logger, building it from ENV and LOG_LEVEL on first use.
func Get() *zerolog.Logger {
	once.Do(func() {
		logger = newLogger(os.Stderr)
	})
	return logger
}

// Component returns a child of the process logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

func newLogger(out io.Writer) *zerolog.Logger {
	logLevel := zerolog.InfoLevel
	if levelStr, ok := env.Get("LOG_LEVEL"); ok {
		if parsedLevel, err := zerolog.ParseLevel(strings.ToLower(levelStr)); err == nil {
			logLevel = parsedLevel
		} else {
			fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL \"%s\"; defaulting to 'info'\n", levelStr)
		}
	}
	zerolog.SetGlobalLevel(logLevel)

	switch env.GetOrDefault("ENV", "development") {
	case "development", "dev":
		return newDevelopment(out)
	default:
		return newProduction(out)
	}
}

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		return strings.ToUpper(fmt.Sprintf("%v", i))
	}
	switch ll {
	case "trace":
		return colorize("TRC", colorMagenta)
	case "debug":
		return colorize("DBG", colorYellow)
	case "info":
		return colorize("INF", colorGreen)
	case "warn":
		return colorize("WRN", colorRed)
	case "error":
		return colorize("ERR", colorRed)
	case "fatal":
		return colorize("FTL", colorRed)
	case "panic":
		return colorize("PNC", colorRed)
	}
	if len(ll) >= 3 {
		ll = ll[:3]
	}
	return colorize(strings.ToUpper(ll), colorBold)
}

// newDevelopment writes colored console output
func newDevelopment(out io.Writer) *zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:         out,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
	zl := zerolog.New(output).With().Timestamp().Logger()
	return &zl
}

// newProduction writes JSON lines with UNIX timestamps
func newProduction(out io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zl := zerolog.New(out).With().Timestamp().Logger()
	return &zl
}
