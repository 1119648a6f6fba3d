package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// ==================== MeterProvider Tests ====================

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter(MeterName))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

// ==================== DepositMetrics Tests ====================

func TestDepositMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	defer mp.Shutdown(context.Background())

	m, err := NewDepositMetrics(mp.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	tenant := uuid.New()
	m.RecordScheduleFrozen(ctx, tenant, 40)
	m.RecordScheduleFrozen(ctx, tenant, 120)
	m.RecordPaymentOrdersCreated(ctx, tenant, 3, false, true)
	m.RecordDepositPaid(ctx, tenant)
	m.RecordReminderDue(ctx, tenant)
	m.RecordStatusChange(ctx, "payment", "completed")
	m.RecordPlanSaved(ctx, tenant)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["deposit_schedules_frozen_total"]))
	assert.Equal(t, int64(3), sumOf(t, metrics["deposit_payment_orders_created_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["deposit_paid_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["deposit_installment_reminders_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["deposit_payment_plans_saved_total"]))

	status := metrics["deposit_order_status_changes_total"].Data.(metricdata.Sum[int64])
	require.Len(t, status.DataPoints, 1)
	kind, _ := status.DataPoints[0].Attributes.Value(AttrOrderKind)
	assert.Equal(t, "payment", kind.AsString())

	hist := metrics["deposit_amount"].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, 160.0, hist.DataPoints[0].Sum)

	created := metrics["deposit_payment_orders_created_total"].Data.(metricdata.Sum[int64])
	incomplete, _ := created.DataPoints[0].Attributes.Value(AttrIncomplete)
	assert.Equal(t, attribute.BOOL, incomplete.Type())
	assert.False(t, incomplete.AsBool())
}

// ==================== DBMetrics Tests ====================

func TestRegisterDBMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	defer mp.Shutdown(context.Background())

	db := setupTracingTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)

	m, err := RegisterDBMetrics(db, sqlDB, mp.Meter(MeterName))
	require.NoError(t, err)
	defer m.Stop()

	require.NoError(t, db.Create(&tracedPlan{ID: "p1", Name: "Monthly"}).Error)
	var plans []tracedPlan
	require.NoError(t, db.Find(&plans).Error)
	assert.Error(t, db.Exec("SELECT * FROM missing_table").Error)

	metrics := collect(t, reader)

	duration := metrics["db_query_duration_seconds"].Data.(metricdata.Histogram[float64])
	ops := map[string]uint64{}
	for _, dp := range duration.DataPoints {
		op, _ := dp.Attributes.Value("operation")
		ops[op.AsString()] += dp.Count
	}
	assert.Equal(t, uint64(1), ops["create"])
	assert.Equal(t, uint64(1), ops["query"])
	assert.Equal(t, uint64(1), ops["select"])
	assert.Equal(t, int64(1), sumOf(t, metrics["db_query_errors_total"]))

	maxConns := metrics["db_pool_connections_max"].Data.(metricdata.Gauge[int64])
	require.Len(t, maxConns.DataPoints, 1)
	assert.Equal(t, int64(4), maxConns.DataPoints[0].Value)
}

func TestDetectOperation(t *testing.T) {
	assert.Equal(t, "select", detectOperation("  SELECT 1"))
	assert.Equal(t, "update", detectOperation("update orders set x=1"))
	assert.Equal(t, "raw", detectOperation("VACUUM"))
	assert.Equal(t, "raw", detectOperation(""))
}
