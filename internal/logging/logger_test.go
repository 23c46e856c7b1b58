package logging_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/logging/logtest"
	"go.uber.org/zap/zapcore"
)

func TestObservedLoggerCarriesFields(t *testing.T) {
	log, logs := logtest.New(zapcore.DebugLevel)

	log.With("service", "SessionService").Info("recovery session started", "session_id", 7)
	log.Debug("ignored by nobody")

	entries := logs.FilterMessage("recovery session started").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "SessionService", fields["service"])
	assert.EqualValues(t, 7, fields["session_id"])
	assert.Equal(t, 2, logs.Len())
}

func TestObservedLoggerRespectsLevel(t *testing.T) {
	log, logs := logtest.New(zapcore.WarnLevel)

	log.Info("too quiet")
	log.Error("storage failure", "error", "disk full")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))

	log, _ := logtest.New(zapcore.InfoLevel)
	assert.Same(t, log, logging.OrNop(log))
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"production", "development", ""} {
		log, err := logging.New(mode)
		require.NoError(t, err, mode)
		log.Info("hello", "mode", mode)
	}
}

func TestRuntimePackageAvoidsTestHelpers(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)

	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		parsed, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		require.NoError(t, err, name)
		for _, imp := range parsed.Imports {
			assert.NotContains(t, imp.Path.Value, "zaptest", name)
		}
	}
}

func TestFromZapWrapsCore(t *testing.T) {
	log, logs := logtest.New(zapcore.InfoLevel)
	log.With("component", "demo").Warn("reusing active session", "session_id", 3)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "demo", entry.ContextMap()["component"])
}
