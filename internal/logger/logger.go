package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op until Init is called, so library code and tests can log freely.
var Log = zap.NewNop().Sugar()

func Init(logFilePath string, debug bool) error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logFilePath}
	cfg.ErrorOutputPaths = []string{logFilePath}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = l.Sugar()
	Log.Infow("Logger initialized.", "path", logFilePath, "debug", debug)
	return nil
}

// Sync flushes buffered entries; errors from syncing stdout/stderr are ignored.
func Sync() {
	_ = Log.Sync()
}
