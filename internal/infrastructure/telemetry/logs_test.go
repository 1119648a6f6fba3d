package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingExporter keeps exported log records in memory
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

// ==================== LoggerProvider Tests ====================

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.False(t, lp.Core(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	exporter := &recordingExporter{}
	lp := NewLoggerProviderWithProcessor("deposits", sdklog.NewSimpleProcessor(exporter), zap.NewNop())
	defer lp.Shutdown(context.Background())

	core, logs := observer.New(zapcore.DebugLevel)
	logger := lp.Bridge(zap.New(core), zapcore.WarnLevel)

	logger.Info("quote computed")
	logger.Warn("reminder skipped", zap.String("order_id", "o-1"))

	assert.Equal(t, 2, logs.Len(), "base core receives everything")

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.records, 1, "export honours the bridge level")
	assert.Equal(t, "reminder skipped", exporter.records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, exporter.records[0].Severity())
}
