// Package logging builds the JSON line logger shared by the HTTP layer and the
// decompile pipeline. Every entry carries a "ts" field rendered in the
// configured location.
package logging

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a zap logger that writes one JSON object per line to w.
func New(w io.Writer, loc *time.Location) *zap.Logger {
	if loc == nil {
		loc = time.UTC
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.In(loc).Format(time.RFC3339Nano))
		},
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zap.DebugLevel)
	return zap.New(core)
}

// NewStdout is the process default used by cmd/api.
func NewStdout(loc *time.Location) *zap.Logger {
	return New(os.Stdout, loc)
}
