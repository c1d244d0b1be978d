package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("hold_expiry")
	m.IncSuccess("hold_expiry")
	m.IncFailure("topup_expiry")
	m.ObserveDuration("hold_expiry", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("hold_expiry")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("topup_expiry")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.IncSuccess("x")
	m.IncFailure("x")
	m.ObserveDuration("x", time.Second)

	empty := NewCronJobMetrics(nil)
	empty.IncSuccess("x")
}

func TestOperationMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperationMetrics(reg)

	m.Observe("hold.create", nil, 5*time.Millisecond)
	m.Observe("hold.create", errors.New("rejected"), 5*time.Millisecond)
	m.Observe("hold.create", nil, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("hold.create", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("hold.create", "failure")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestUnknownLabelNormalized(t *testing.T) {
	if normalizeLabel("") != "unknown" {
		t.Fatal("empty labels should normalize to unknown")
	}
}
