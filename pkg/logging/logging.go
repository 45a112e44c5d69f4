package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the process-wide logger writing to stderr.
func New(level slog.Level) *slog.Logger {
	return slog.New(NewConsoleHandler(os.Stderr, level))
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.New(color.FgMagenta).Sprint("DBG"),
	slog.LevelInfo:  color.New(color.FgCyan).Sprint("INF"),
	slog.LevelWarn:  color.New(color.FgYellow).Sprint("WRN"),
	slog.LevelError: color.New(color.FgRed).Sprint("ERR"),
}

// ConsoleHandler is a compact slog handler for terminal output: colored
// level tag, message, then key=value pairs.
type ConsoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func NewConsoleHandler(w io.Writer, level slog.Level) *ConsoleHandler {
	return &ConsoleHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	tag, ok := levelTags[r.Level]
	if !ok {
		tag = r.Level.String()
	}

	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, attr := range h.attrs {
		writeAttr(&b, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ConsoleHandler{mu: h.mu, w: h.w, level: h.level, attrs: merged}
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened; this server never nests them.
	return h
}

func writeAttr(b *strings.Builder, attr slog.Attr) {
	b.WriteByte(' ')
	b.WriteString(color.New(color.Faint).Sprint(attr.Key))
	b.WriteByte('=')
	fmt.Fprintf(b, "%v", attr.Value.Any())
}
