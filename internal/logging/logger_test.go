package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		logLevel string
		wantErr  bool
	}{
		{
			name:    "production mode",
			mode:    "production",
			wantErr: false,
		},
		{
			name:    "development mode",
			mode:    "development",
			wantErr: false,
		},
		{
			name:     "with custom log level",
			mode:     "production",
			logLevel: "debug",
			wantErr:  false,
		},
		{
			name:     "with invalid log level still works",
			mode:     "production",
			logLevel: "invalid",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if tt.wantErr {
					assert.NotNil(t, r, "Expected panic but got none")
				} else {
					assert.Nil(t, r, "Unexpected panic: %v", r)
				}
			}()

			if tt.logLevel != "" {
				os.Setenv("MAILKEYS_LOG_LEVEL", tt.logLevel)
				defer os.Unsetenv("MAILKEYS_LOG_LEVEL")
			}

			InitLogger(tt.mode)
			assert.NotNil(t, logger)
		})
	}
}

func TestGet(t *testing.T) {
	InitLogger("production")
	l := Get()
	require.NotNil(t, l)
	assert.IsType(t, &zap.SugaredLogger{}, l)
}

func TestNewConfig(t *testing.T) {
	env := map[string]string{
		"MAILKEYS_LOG_LEVEL": "debug",
		"MAILKEYS_LOG_FILE":  "/tmp/mailkeys.log",
	}
	cfg := newConfig(ModeProduction, func(k string) string { return env[k] })

	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "timestamp", cfg.EncoderConfig.TimeKey)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.Equal(t, []string{"stdout", "/tmp/mailkeys.log"}, cfg.OutputPaths)

	cfg = newConfig(ModeDevelopment, func(string) string { return "" })
	assert.Equal(t, "console", cfg.Encoding)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestComponent(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	Component("backend").Debug("key stored", zap.String("repository", "repo-a"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "key stored", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "backend", fields["component"])
	assert.Equal(t, "repo-a", fields["repository"])
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	testLogger := zap.New(core).Sugar()
	logger = testLogger

	l := WithRequestID("test-request-id")
	l.Info("test message")

	entries := recorded.All()
	require.Len(t, entries, 1)

	found := false
	for _, field := range entries[0].Context {
		if field.Key == "request_id" && field.String == "test-request-id" {
			found = true
			break
		}
	}
	assert.True(t, found, "Expected to find request_id field")
}

func TestLogFileConfiguration(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "mailkeys.log")
	os.Setenv("MAILKEYS_LOG_FILE", tempFile)
	defer os.Unsetenv("MAILKEYS_LOG_FILE")

	InitLogger("production")
	logger.Info("test log to file")
	Sync()

	_, err := os.Stat(tempFile)
	assert.NoError(t, err, "Log file should be created")
}
