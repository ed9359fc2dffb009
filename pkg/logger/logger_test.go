package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/pkg/logger"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "debug", OutputPaths: []string{t.TempDir() + "/narrator.log"}})
	require.NoError(t, err)

	child := log.With(logger.String("source", "https://example.com"))
	child.Info("fetched", logger.Int("bytes", 10))
	assert.NoError(t, log.Sync())
}

func TestNop(t *testing.T) {
	log := logger.NewNop()
	log.Error("ignored", logger.Error(assert.AnError))
	assert.NotNil(t, log.With(logger.Bool("k", true)))
}
