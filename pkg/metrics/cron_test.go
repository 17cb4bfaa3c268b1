package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	end := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	m.ObserveRun("payment-reconcile", 250*time.Millisecond, end, nil)
	m.ObserveRun("payment-reconcile", time.Second, end.Add(time.Minute), errors.New("daraja down"))
	m.IncSkippedCycle()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "outcome", CronOutcomeSuccess); err != nil || got != 1 {
		t.Fatalf("expected one success, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "outcome", CronOutcomeFailure); err != nil || got != 1 {
		t.Fatalf("expected one failure, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "payment-reconcile"); err != nil || got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f (%v)", got, err)
	}
	gauge := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != float64(end.Unix()) {
		t.Fatalf("last success should only move on success")
	}
	skipped := findMetricFamily(mfs, "cron_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one skipped cycle")
	}

	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("x", time.Second, end, nil)
	nilMetrics.IncSkippedCycle()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestOutboxMetricsCountsPerTopic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("orders", "order.created")
	m.IncPublished("orders", "order.created")
	m.IncDeadLettered("payment.updated", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_published_total", "topic", "orders"); err != nil || got != 2 {
		t.Fatalf("expected 2 published, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("expected 1 dead lettered, got %f (%v)", got, err)
	}
}

func TestProcessorMetricsRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewProcessorMetrics(reg)
	m.Observe("mpesa", "stk_push", "timeout", 10*time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "processor_requests_total", "outcome", "timeout"); err != nil || got != 1 {
		t.Fatalf("expected timeout counted once, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "processor_request_duration_seconds", "processor", "mpesa"); err != nil || got != 10 {
		t.Fatalf("expected duration 10s, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var p *ProcessorMetrics
	p.Observe("paystack", "initialize", "ok", time.Second)
	var o *OutboxMetrics
	o.IncFailed("t", "e")
	NewProcessorMetrics(nil).Observe("paystack", "initialize", "ok", time.Second)
}

func TestSettlementMetricsCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)
	m.Inc("cash", "settled")
	m.Inc("mpesa_stk", "duplicate")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "payment_settlements_total", "outcome", "duplicate"); err != nil || got != 1 {
		t.Fatalf("expected one duplicate, got %f (%v)", got, err)
	}
	var nilMetrics *SettlementMetrics
	nilMetrics.Inc("cash", "settled")
}
