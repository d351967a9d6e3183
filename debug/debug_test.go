package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPrintfRespectsDebugFlag(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)
	defer Disable()

	Disable()
	Printf("hidden %d", 1)
	assert.Equal(t, 0, logs.Len())

	Enable()
	Printf("shown %d", 2)
	if assert.Equal(t, 1, logs.Len()) {
		assert.Equal(t, "shown 2", logs.All()[0].Message)
	}
}

func TestLoggerDefault(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	assert.NotNil(t, l)
	assert.Same(t, l, Logger())
}
