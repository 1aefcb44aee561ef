// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

func ensure() {
	if log == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM)
func GetZapLogger() *zap.Logger {
	ensure()
	return baseLogger
}

// GetSugaredLogger returns a sugared logger for handing to components. The
// package-level caller skip is removed so call sites are reported correctly.
func GetSugaredLogger() *zap.SugaredLogger {
	ensure()
	return baseLogger.WithOptions(zap.AddCallerSkip(-1)).Sugar()
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		log.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	ensure()
	log.Debugf(template, args...)
}

func Info(args ...interface{}) {
	ensure()
	log.Info(args...)
}

func Infof(template string, args ...interface{}) {
	ensure()
	log.Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	ensure()
	log.Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	ensure()
	log.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	ensure()
	log.Errorf(template, args...)
}

func Fatalf(template string, args ...interface{}) {
	ensure()
	log.Errorf(template, args...)
	Sync()
	os.Exit(1)
}
