// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Severity identifies the sort of log: info, warning etc.
type Severity int32

// These constants identify the log levels in order of increasing severity.
const (
	Severity_UNKNOWN Severity = iota
	Severity_INFO
	Severity_WARNING
	Severity_ERROR
	Severity_FATAL
)

var severityNames = [...]string{
	Severity_UNKNOWN: "UNKNOWN",
	Severity_INFO:    "INFO",
	Severity_WARNING: "WARNING",
	Severity_ERROR:   "ERROR",
	Severity_FATAL:   "FATAL",
}

// String implements fmt.Stringer.
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int32(s))
	}
	return severityNames[s]
}

// SafeValue implements redact.SafeValue.
func (Severity) SafeValue() {}

// SeverityByName attempts to parse the passed in string into a severity. (i.e.
// ERROR, INFO). If it succeeds, the returned bool is set to true.
func SeverityByName(s string) (Severity, bool) {
	s = strings.ToUpper(s)
	for i, name := range severityNames {
		if name == s && i != int(Severity_UNKNOWN) {
			return Severity(i), true
		}
	}
	return 0, false
}

// loggingT collects all the global state of the logging setup.
type loggingT struct {
	mu struct {
		sync.Mutex
		out io.Writer
	}
	verbosity  atomic.Int32
	redactable atomic.Bool

	// exitFn is called after a FATAL entry is written.
	exitFn func(int)
}

var logging = func() *loggingT {
	l := &loggingT{exitFn: os.Exit}
	l.mu.out = os.Stderr
	return l
}()

// SetOutput redirects the log output and returns a function that restores the
// previous writer.
func SetOutput(w io.Writer) (restore func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.mu.out
	logging.mu.out = w
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.mu.out = prev
	}
}

// SetVerbosity sets the global verbosity level and returns the previous one.
func SetVerbosity(level int32) int32 {
	return logging.verbosity.Swap(level)
}

// SetRedactable configures whether redaction markers are kept in the output.
func SetRedactable(b bool) {
	logging.redactable.Store(b)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return logging.verbosity.Load() >= level
}

// Infof logs to the INFO log.
// It extracts log tags from the context and logs them along with the given
// message. Arguments are handled in the manner of fmt.Printf.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, Severity_INFO, format, args)
}

// Warningf logs to the WARNING and INFO logs.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, Severity_WARNING, format, args)
}

// Errorf logs to the ERROR, WARNING, and INFO logs.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, Severity_ERROR, format, args)
}

// Fatalf logs to the INFO, WARNING, ERROR, and FATAL logs, then exits the
// process with a non-zero status.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, Severity_FATAL, format, args)
	logging.exitFn(255)
}

// VEventf either logs a message to the log (if the verbosity level is at
// least the given level) and/or records it as an event on the active span in
// the context, if that span is recording.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	sp := trace.SpanFromContext(ctx)
	recording := sp.IsRecording()
	if !V(level) && !recording {
		return
	}
	if recording {
		msg := redact.Sprintf(format, args...)
		sp.AddEvent(string(msg.StripMarkers()), trace.WithAttributes(
			attribute.Int("verbosity", int(level)),
		))
	}
	if V(level) {
		logDepth(ctx, 1, Severity_INFO, format, args)
	}
}

// ExpensiveLogEnabled is used to test whether effort should be used to produce
// log messages whose construction has a measurable cost.
func ExpensiveLogEnabled(ctx context.Context, level int32) bool {
	return V(level) || trace.SpanFromContext(ctx).IsRecording()
}

func logDepth(ctx context.Context, depth int, sev Severity, format string, args []interface{}) {
	entry := makeEntry(ctx, sev, depth+1, format, args)
	logging.mu.Lock()
	defer logging.mu.Unlock()
	_, _ = io.WriteString(logging.mu.out, entry)
}

// makeEntry renders a log line in a format close to crdb-v1:
//
//	I241019 10:04:05.123456 file.go:42  [tag=val] message
func makeEntry(
	ctx context.Context, sev Severity, depth int, format string, args []interface{},
) string {
	file, line := "???", 1
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		file, line = filepath.Base(f), l
	}

	var msg redact.RedactableString
	if len(args) == 0 {
		msg = redact.Sprint(redact.Safe(format))
	} else {
		msg = redact.Sprintf(format, args...)
	}
	if !logging.redactable.Load() {
		msg = redact.RedactableString(msg.StripMarkers())
	}

	var buf strings.Builder
	buf.WriteByte(severityNames[sev][0])
	buf.WriteString(time.Now().UTC().Format("060102 15:04:05.000000"))
	fmt.Fprintf(&buf, " %s:%d  ", file, line)
	formatTags(ctx, &buf)
	buf.WriteString(string(msg))
	if !strings.HasSuffix(string(msg), "\n") {
		buf.WriteByte('\n')
	}
	return buf.String()
}

// formatTags appends the context tags, if any, as "[k=v,k2] ".
func formatTags(ctx context.Context, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil || len(tags.Get()) == 0 {
		return
	}
	buf.WriteByte('[')
	for i, t := range tags.Get() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(t.Key())
		if v := t.ValueStr(); v != "" {
			buf.WriteByte('=')
			buf.WriteString(v)
		}
	}
	buf.WriteString("] ")
}

// FormatWithContextTags formats the string and prepends the context tags.
//
// Redaction markers are *not* inserted. The resulting string is generally
// unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, &buf)
	fmt.Fprintf(&buf, format, args...)
	return buf.String()
}
