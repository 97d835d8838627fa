package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip is the number of frames between callerOf and the code that called a level method:
// callerOf, write, print/printf/printw and the level method itself.
const callerSkip = 4

type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func (l *impl) SetLevel(level Level) {
	l.level.Set(level)
}

func (l *impl) GetLevel() Level {
	return l.level.Get()
}

func (l *impl) AddAppender(appender Appender) {
	l.appenders = append(l.appenders, appender)
}

func (l *impl) Sublogger(subname string) Logger {
	name := subname
	if l.name != "" {
		name = l.name + "." + subname
	}
	appenders := make([]Appender, len(l.appenders))
	copy(appenders, l.appenders)
	return newImpl(name, l.GetLevel(), l.inUTC, appenders...)
}

func (l *impl) Sync() error {
	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (l *impl) print(level Level, args []interface{}) {
	if level >= l.GetLevel() {
		l.write(level, fmt.Sprint(args...), nil)
	}
}

func (l *impl) printf(level Level, template string, args []interface{}) {
	if level >= l.GetLevel() {
		l.write(level, fmt.Sprintf(template, args...), nil)
	}
}

func (l *impl) printw(level Level, msg string, keysAndValues []interface{}) {
	if level >= l.GetLevel() {
		l.write(level, msg, toFields(keysAndValues))
	}
}

// write hands the entry to every appender. Appender failures go to stderr since there is nowhere
// else to report them.
func (l *impl) write(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: l.name,
		Message:    msg,
		Caller:     callerOf(callerSkip),
	}
	if l.inUTC {
		entry.Time = entry.Time.UTC()
	}
	for _, appender := range l.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up alternating keys and values. Keys are printed with %v. A trailing key
// without a value keeps an error in its place.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func callerOf(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}

func (l *impl) Debug(args ...interface{}) { l.print(DEBUG, args) }

func (l *impl) Debugf(template string, args ...interface{}) { l.printf(DEBUG, template, args) }

func (l *impl) Debugw(msg string, keysAndValues ...interface{}) { l.printw(DEBUG, msg, keysAndValues) }

func (l *impl) Info(args ...interface{}) { l.print(INFO, args) }

func (l *impl) Infof(template string, args ...interface{}) { l.printf(INFO, template, args) }

func (l *impl) Infow(msg string, keysAndValues ...interface{}) { l.printw(INFO, msg, keysAndValues) }

func (l *impl) Warn(args ...interface{}) { l.print(WARN, args) }

func (l *impl) Warnf(template string, args ...interface{}) { l.printf(WARN, template, args) }

func (l *impl) Warnw(msg string, keysAndValues ...interface{}) { l.printw(WARN, msg, keysAndValues) }

func (l *impl) Error(args ...interface{}) { l.print(ERROR, args) }

func (l *impl) Errorf(template string, args ...interface{}) { l.printf(ERROR, template, args) }

func (l *impl) Errorw(msg string, keysAndValues ...interface{}) { l.printw(ERROR, msg, keysAndValues) }

// Fatal logs at ERROR, which no level filters out, then exits.
func (l *impl) Fatal(args ...interface{}) {
	l.print(ERROR, args)
	exit(1)
}

func (l *impl) Fatalf(template string, args ...interface{}) {
	l.printf(ERROR, template, args)
	exit(1)
}

func (l *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	l.printw(ERROR, msg, keysAndValues)
	exit(1)
}

var exit = os.Exit
