// Package logger builds the application's zap.Logger: structured JSON to
// a rolling log file (ollamamq.log) plus a human-readable console encoder
// on stdout, following the dual-sink shape common across the example
// services this dispatcher was modeled on.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// New builds a *zap.Logger writing to both stdout (console-encoded, for
// interactive use) and a rotating file at path (JSON-encoded, for
// machine consumption). maxSizeMB bounds a single log file before
// lumberjack rotates it.
func New(path string, maxSizeMB int) (*zap.Logger, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, zap.InfoLevel)

	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), zapcore.AddSync(os.Stdout), zap.InfoLevel)

	core := zapcore.NewTee(fileCore, consoleCore)
	return zap.New(core), nil
}
