package cmdutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LogFormat implements flag.Value and can be used to pick the log output
// format from a flag. The zero value is ready for use and means logfmt.
type LogFormat struct {
	name  string
	build func(io.Writer) log.Logger
}

// String implements flag.Value.
func (f LogFormat) String() string {
	if f.build == nil {
		return "logfmt"
	}
	return f.name
}

// Set implements flag.Value.
func (f *LogFormat) Set(in string) error {
	switch strings.ToLower(in) {
	case "logfmt":
		f.name, f.build = "logfmt", log.NewLogfmtLogger
	case "json":
		f.name, f.build = "json", log.NewJSONLogger
	default:
		return fmt.Errorf("unknown log format %q, valid options logfmt, json", in)
	}
	return nil
}

// Logger builds a logger writing to w in the configured format.
func (f LogFormat) Logger(w io.Writer) log.Logger {
	if f.build == nil {
		return log.NewLogfmtLogger(w)
	}
	return f.build(w)
}

// NewLogger builds the logger the chirp command line tools share: formatted
// per lf, filtered per ll, and annotated with a timestamp, the caller and
// the program name.
func NewLogger(w io.Writer, ll LogLevel, lf LogFormat, program string) log.Logger {
	l := lf.Logger(log.NewSyncWriter(w))
	l = level.NewFilter(l, ll.FilterOption())
	return log.With(l, "ts", log.DefaultTimestamp, "caller", log.DefaultCaller, "program", program)
}
