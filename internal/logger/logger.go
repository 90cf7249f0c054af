// Package logger 提供全局分级日志，底层使用 zerolog。
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// Init 设置全局日志级别与输出格式（text|json）。未知级别回退到 info。
func Init(level, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter 与 Init 相同，但允许指定输出目标（测试中使用）。
func InitWriter(w io.Writer, level, format string) {
	lvl := ParseLevel(level)
	out := w
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	mu.Lock()
	log = zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	mu.Unlock()
}

// ParseLevel 将 debug/info/warn/error 映射为 zerolog 级别。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

func Debugf(format string, args ...interface{}) {
	current().Debug().Msgf(format, args...)
}

func Infof(format string, args ...interface{}) {
	current().Info().Msgf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	current().Warn().Msgf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	current().Error().Msgf(format, args...)
}
