package reporters

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/netclient/pkg/client"
)

// Logger is the capability LoggingReporter writes through.
type Logger interface {
	Log(message string, fields map[string]any)
}

// SlogLogger adapts a *slog.Logger. Context keys become attributes in sorted
// order.
type SlogLogger struct {
	L     *slog.Logger
	Level slog.Level
}

// NewSlogLogger logs at info level through l.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{L: l, Level: slog.LevelInfo}
}

// Log implements Logger.
func (s *SlogLogger) Log(message string, fields map[string]any) {
	if s.L == nil {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	s.L.LogAttrs(context.Background(), s.Level, message, attrs...)
}

// SimpleLogger writes "[app] message key=value ..." lines.
type SimpleLogger struct {
	appName string
	out     io.Writer
	mu      sync.Mutex
}

// NewSimpleLogger writes to stderr, prefixing every line with appName.
func NewSimpleLogger(appName string) *SimpleLogger {
	return &SimpleLogger{appName: appName, out: os.Stderr}
}

// SetOutput redirects the logger.
func (s *SimpleLogger) SetOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

// Log implements Logger.
func (s *SimpleLogger) Log(message string, fields map[string]any) {
	var b strings.Builder
	b.WriteString("[" + s.appName + "] " + message)
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, b.String())
}

// LoggingReporter logs every request and its outcome.
type LoggingReporter struct {
	logger Logger
}

// NewLoggingReporter creates a reporter writing to logger.
func NewLoggingReporter(logger Logger) *LoggingReporter {
	return &LoggingReporter{logger: logger}
}

// BeforeSend implements client.Reporter.
func (r *LoggingReporter) BeforeSend(req *client.Request) {
	if req == nil {
		r.logger.Log("sending request", map[string]any{"request": "<nil>"})
		return
	}
	ctx := map[string]any{
		"method": string(req.Method),
		"url":    req.URL,
	}
	if len(req.Params) > 0 {
		ctx["params"] = req.Params
	}
	r.logger.Log("sending request", ctx)
}

// AfterReceive implements client.Reporter.
func (r *LoggingReporter) AfterReceive(req *client.Request, rc *client.Context) {
	ctx := map[string]any{
		"request_id": rc.ID,
		"duration":   rc.Duration.Round(time.Microsecond).String(),
		"stubbed":    rc.Stubbed,
	}
	if req != nil {
		ctx["method"] = string(req.Method)
		ctx["url"] = req.URL
	}
	if rc.Response != nil {
		ctx["status"] = rc.Response.StatusCode
		ctx["bytes"] = len(rc.Response.Body)
	}
	if rc.Err != nil {
		ctx["error"] = rc.Err.Error()
		r.logger.Log("request failed", ctx)
		return
	}
	r.logger.Log("response received", ctx)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var (
	_ Logger          = (*SlogLogger)(nil)
	_ Logger          = (*SimpleLogger)(nil)
	_ client.Reporter = (*LoggingReporter)(nil)
)
