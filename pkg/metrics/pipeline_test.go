package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestResolverMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResolverMetrics(reg)

	m.IncResolution("released")
	m.IncResolution("released")
	m.IncResolution("embargoed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "release_gate_resolutions", "outcome", "released"); err != nil {
		t.Fatalf("fetch released: %v", err)
	} else if got != 2 {
		t.Fatalf("expected released=2, got %f", got)
	}
}

func TestIngestMetricsObservesBatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngestMetrics(reg)

	m.IncItem("failed", "upload_failed")
	m.IncItem("succeeded", "")
	m.ObserveBatch(300 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "catalog_ingest_items", "reason", "upload_failed"); err != nil {
		t.Fatalf("fetch failed items: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	NewResolverMetrics(nil).IncResolution("released")
	NewIngestMetrics(nil).IncItem("succeeded", "")
	NewIngestMetrics(nil).ObserveBatch(time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, labelName, labelValue string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return metric.GetCounter().GetValue(), nil
				}
			}
		}
	}
	return 0, fmt.Errorf("metric %s{%s=%q} not found", name, labelName, labelValue)
}
