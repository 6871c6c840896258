// Package cmdutil holds helpers shared by commands.
package cmdutil

import (
	"fmt"
	"strings"

	"github.com/go-kit/log/level"
)

// DefaultLogLevel is used by a zero LogLevel. Sessions log lifecycle events
// at debug and info, so a healthy session prints nothing by default.
const DefaultLogLevel = "warn"

var levels = map[string]LogLevel{
	"error": {value: level.ErrorValue(), option: level.AllowError()},
	"warn":  {value: level.WarnValue(), option: level.AllowWarn()},
	"info":  {value: level.InfoValue(), option: level.AllowInfo()},
	"debug": {value: level.DebugValue(), option: level.AllowDebug()},
}

// LogLevel implements flag.Value and can be used to set the logging level
// from a flag. The zero value is ready for use and means DefaultLogLevel.
type LogLevel struct {
	value  level.Value
	option level.Option
}

// String implements flag.Value.
func (l LogLevel) String() string {
	if l.value == nil {
		return DefaultLogLevel
	}
	return l.value.String()
}

// Set implements flag.Value.
func (l *LogLevel) Set(in string) error {
	found, ok := levels[strings.ToLower(in)]
	if !ok {
		return fmt.Errorf("unknown log level %q, valid options error, warn, info, debug", in)
	}
	*l = found
	return nil
}

// FilterOption returns l as an option for level.NewFilter.
func (l LogLevel) FilterOption() level.Option {
	if l.option == nil {
		return levels[DefaultLogLevel].option
	}
	return l.option
}
