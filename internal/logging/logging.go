// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	EnvLevel = "VLINK_LOG_LEVEL"
	EnvJSON  = "VLINK_LOG_JSON"
)

// Configure sets the level and formatter once at startup. The environment
// wins over the arguments.
func Configure(level string, json bool) {
	if v := strings.TrimSpace(os.Getenv(EnvLevel)); v != "" {
		level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJSON)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			json = b
		}
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	if err != nil && level != "" {
		logrus.WithFields(logrus.Fields{
			"function": "Configure",
			"level":    level,
		}).Warn("Unknown log level, using info")
	}
}
