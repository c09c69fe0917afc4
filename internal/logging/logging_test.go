package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigureEnvOverrides(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvJSON, "true")
	Configure("warn", false)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	_, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestConfigureFallsBackToInfo(t *testing.T) {
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvJSON, "")
	Configure("loud", false)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	_, ok := logrus.StandardLogger().Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
