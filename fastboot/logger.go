package fastboot

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a logrus.FieldLogger to Logger.
type logrusLogger struct {
	l logrus.FieldLogger
}

// NewLogrusLogger returns a Logger that writes through l.
// Key-value pairs become logrus fields; a trailing key without a value is
// logged under "extra".
//
// Example:
//
//	log := logrus.New()
//	log.SetLevel(logrus.DebugLevel)
//	client := fastboot.New(t, fastboot.WithLogger(fastboot.NewLogrusLogger(log)))
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	return &logrusLogger{l: l}
}

func (l *logrusLogger) Debug(msg string, kv ...interface{}) {
	l.l.WithFields(fields(kv)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, kv ...interface{}) {
	l.l.WithFields(fields(kv)).Info(msg)
}

func (l *logrusLogger) Error(msg string, kv ...interface{}) {
	l.l.WithFields(fields(kv)).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			f["extra"] = kv[i]
			break
		}
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
