package services

import (
	"github.com/sirupsen/logrus"
)

var logLevel = logrus.InfoLevel

// SetLogLevel sets the level used by services created afterwards
func SetLogLevel(level logrus.Level) {
	logLevel = level
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logLevel)
	return logger
}
