package debug

import (
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Debug bool

	mu     sync.RWMutex
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	debugEnv, exists := os.LookupEnv("SOCKET_GO_DEBUG")
	if exists {
		if val, err := strconv.ParseBool(debugEnv); err == nil && val {
			Enable()
		}
	}
}

// Logger returns the process-wide logger. Debug output is only emitted while
// debugging is enabled.
func Logger() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = level
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	}
	return logger
}

// SetLogger replaces the process-wide logger. A nil logger restores the default.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func Printf(format string, v ...interface{}) {
	if Debug {
		Logger().Sugar().Debugf(format, v...)
	}
}

func Enable() {
	Debug = true
	level.SetLevel(zapcore.DebugLevel)
}

func Disable() {
	Debug = false
	level.SetLevel(zapcore.InfoLevel)
}
