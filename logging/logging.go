// Package logging contains the structured logger used by the undistortion tools. Entries are
// fanned out to appenders: console lines on stdout, a rotating file, the test log, or a zap core.
package logging

// NewLogger returns a logger that writes Info+ console lines to stdout in UTC.
func NewLogger(name string) Logger {
	return newImpl(name, INFO, true, NewStdoutAppender())
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}
