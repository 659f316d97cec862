package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	jobmetrics "github.com/pharmadesk/pharmadesk/internal/jobs"
	"github.com/pharmadesk/pharmadesk/internal/shared"
	"github.com/pharmadesk/pharmadesk/jobs"
)

const catalogSize = 5000

type catalogFake struct {
	products []catalog.Product
	err      error
}

func (c *catalogFake) List(context.Context) ([]catalog.Product, error) {
	return c.products, c.err
}

func largeCatalog(n int) []catalog.Product {
	now := time.Now().UTC()
	out := make([]catalog.Product, n)
	for i := range out {
		expiry := now.AddDate(0, 0, i%400-30)
		out[i] = catalog.Product{
			ID:         fmt.Sprintf("p-%05d", i),
			Name:       fmt.Sprintf("Product %05d", i),
			Barcode:    fmt.Sprintf("62%011d", i),
			Price:      shared.Money(1000 + i),
			Quantity:   i % 120,
			UnitType:   "box",
			ExpiryDate: &expiry,
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStockAlertJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	source := &catalogFake{products: largeCatalog(catalogSize)}
	job := &jobs.StockAlertJob{
		Products:   source,
		Thresholds: catalog.StaticThresholds(catalog.DefaultThresholds()),
		Notifier:   shared.LogNotifier{Logger: quietLogger()},
		Logger:     quietLogger(),
		Metrics:    metrics,
	}
	task := asynq.NewTask(jobs.TaskStockAlerts, nil)

	var samples []time.Duration
	for i := 0; i < 40; i++ {
		start := time.Now()
		require.NoError(t, job.Handle(context.Background(), task))
		samples = append(samples, time.Since(start))
	}

	// A couple of store outages must surface as failures without skewing the ratio.
	source.err = errors.New("connection refused")
	for i := 0; i < 2; i++ {
		require.Error(t, job.Handle(context.Background(), task))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	success := metricValue(t, families, "pharmadesk_jobs_total", map[string]string{"job": jobs.TaskStockAlerts, "status": "success"})
	failure := metricValue(t, families, "pharmadesk_jobs_total", map[string]string{"job": jobs.TaskStockAlerts, "status": "failure"})
	require.Equal(t, float64(40), success)
	require.Equal(t, float64(2), failure)
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("stock alert success ratio too low: %f", ratio)
	}

	if mean := histogramMean(t, families, "pharmadesk_job_duration_seconds", map[string]string{"job": jobs.TaskStockAlerts}); mean > 0.5 {
		t.Fatalf("stock alert mean duration above budget: %f", mean)
	}
	if p95 := percentile95(samples); p95 > time.Second {
		t.Fatalf("stock alert latency regression: p95=%s", p95)
	}
}

func BenchmarkStockScan(b *testing.B) {
	job := &jobs.StockAlertJob{
		Products:   &catalogFake{products: largeCatalog(catalogSize)},
		Thresholds: catalog.StaticThresholds(catalog.DefaultThresholds()),
		Notifier:   shared.LogNotifier{Logger: quietLogger()},
		Logger:     quietLogger(),
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := job.Scan(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		want, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != want {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
