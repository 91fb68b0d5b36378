package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nainya/grantdraft/pkg/version"
)

// Metrics must satisfy the store's observer hook
var _ version.Observer = (*Metrics)(nil)

func TestStoreEventsAreCounted(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	s := version.NewStore(version.Options{Observer: m})
	s.Save(version.Snapshot{"topic": "a"}, "one")
	s.Save(version.Snapshot{"topic": "b"}, "two")
	s.Get(1)
	s.Get(5)

	if got := testutil.ToFloat64(m.VersionsSavedTotal); got != 2 {
		t.Errorf("Expected 2 saves, got %v", got)
	}
	if got := testutil.ToFloat64(m.VersionsStored); got != 2 {
		t.Errorf("Expected 2 stored, got %v", got)
	}
	if got := testutil.ToFloat64(m.LookupsTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.LookupsTotal.WithLabelValues("miss")); got != 1 {
		t.Errorf("Expected 1 miss, got %v", got)
	}
}

func TestRecordGrpcRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordGrpcRequest("/grantdraft.v1.VersionService/Get", "success", 2*time.Millisecond)
	m.RecordGrpcRequest("/grantdraft.v1.VersionService/Get", "error", time.Millisecond)

	if got := testutil.ToFloat64(m.GrpcRequestsTotal.WithLabelValues("/grantdraft.v1.VersionService/Get", "success")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}
	if got := testutil.CollectAndCount(m.GrpcRequestDuration); got != 1 {
		t.Errorf("Expected 1 histogram series, got %d", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances on their own registries must not collide
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
