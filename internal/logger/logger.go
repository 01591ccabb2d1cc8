package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	instance    *zap.Logger     //nolint:gochecknoglobals // process-wide logger
	atomicLevel zap.AtomicLevel //nolint:gochecknoglobals // process-wide logger
	once        sync.Once       //nolint:gochecknoglobals // process-wide logger
)

func build() {
	atomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoderCfg.CallerKey = ""
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stderr),
		atomicLevel,
	)

	instance = zap.New(core)
}

// GetLogger returns the process-wide logger, building it on first use.
func GetLogger() *zap.Logger {
	once.Do(build)
	return instance
}

// SetLevel adjusts the minimum level of the process-wide logger.
func SetLevel(level zapcore.Level) {
	once.Do(build)
	atomicLevel.SetLevel(level)
}
