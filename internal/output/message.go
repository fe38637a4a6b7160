package output

import (
	"fmt"
	"io"
)

// Message prefixes.
const (
	infoPrefix    = "ℹ️  "
	warnPrefix    = "⚠️  "
	successPrefix = "✅ "
)

// Infof writes an informational line to w.
func Infof(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, infoPrefix+fmt.Sprintf(format, args...))
}

// Warnf writes a warning line to w, normally stderr.
func Warnf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, warnPrefix+fmt.Sprintf(format, args...))
}

// Successf writes a success line to w.
func Successf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, successPrefix+fmt.Sprintf(format, args...))
}
