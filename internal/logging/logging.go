package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger 按配置的级别创建 slog 文本日志
func NewLogger(levelStr string) *slog.Logger {
	return newLogger(os.Stdout, levelStr)
}

// Discard 测试中使用，丢弃所有日志
func Discard() *slog.Logger {
	return newLogger(io.Discard, "error")
}

func newLogger(w io.Writer, levelStr string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(levelStr),
	})
	return slog.New(handler)
}

func parseLevel(levelStr string) slog.Leveler {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
