package observability

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT values. Unknown
// values fall back to info and text.
func NewLogger(prefix, level, format string) *log.Logger {
	return newLogger(os.Stderr, prefix, level, format)
}

func newLogger(w io.Writer, prefix, level, format string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	formatter := log.TextFormatter
	switch format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
}
