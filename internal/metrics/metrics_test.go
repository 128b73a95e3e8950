package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordScan(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordScan(5, 2, 7, 10*time.Millisecond)
	m.RecordScan(1, 0, 3, time.Millisecond)

	if got := testutil.ToFloat64(m.ScansTotal); got != 2 {
		t.Errorf("Expected 2 scans, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsDecodedTotal); got != 6 {
		t.Errorf("Expected 6 decoded records, got %v", got)
	}
	if got := testutil.ToFloat64(m.DecodeFailuresTotal); got != 2 {
		t.Errorf("Expected 2 failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.DictionaryEntries); got != 3 {
		t.Errorf("Expected dictionary gauge 3, got %v", got)
	}
}

func TestRecordStoreOperation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStoreOperation("persist", "success", time.Millisecond)
	m.RecordStoreOperation("persist", "error", time.Millisecond)
	m.RecordStoreOperation("remove", "success", time.Millisecond)

	if got := testutil.ToFloat64(m.RecordsEncodedTotal); got != 1 {
		t.Errorf("Expected 1 encoded record, got %v", got)
	}
	if got := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("persist", "error")); got != 1 {
		t.Errorf("Expected 1 failed persist, got %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide when given their own registries
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
