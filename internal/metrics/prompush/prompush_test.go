package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"rosteretl/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain a counter value")
	}
	return m.GetCounter().GetValue()
}

func summaryCount(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("summary observer does not implement prometheus.Metric")
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "roster", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "etl"},
		{name: "explicit job name", jobName: "nightly-roster", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly-roster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend() = %v, %v; want nil backend and error", b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestIncCounterRoutes(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "load", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "processed"})
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"kind": "roster", "status": "skipped"})
	b.IncCounter(metrics.SectionsTotal, 3, metrics.Labels{"section": "MathScale"})
	b.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"section": "MathScale"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"kind": "processed"})

	checks := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"step", b.stepCounter.WithLabelValues("load", "success"), 2},
		{"records", b.recordCounter.WithLabelValues("processed"), 5},
		{"files", b.fileCounter.WithLabelValues("roster", "skipped"), 1},
		{"sections", b.sectionCounter.WithLabelValues("MathScale"), 4},
		{"untouched", b.recordCounter.WithLabelValues("students"), 0},
	}
	for _, c := range checks {
		if got := counterValue(t, c.c); got != c.want {
			t.Errorf("%s counter = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 1, nil)
	b.IncCounter(metrics.FilesTotal, 1, nil)
	b.IncCounter(metrics.SectionsTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	lbls := metrics.Labels{"step": "read", "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 9, lbls)

	count, sum := summaryCount(t, b.stepDuration, "read", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("summary = (%d, %v), want (1, 1.5)", count, sum)
	}
}

func TestFlushPushesToGateway(t *testing.T) {
	t.Parallel()

	type request struct {
		method, path, body string
	}
	reqs := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqs <- request{r.Method, r.URL.Path, string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("roster-job", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"kind": "survey", "status": "success"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	select {
	case got := <-reqs:
		if got.method != http.MethodPut {
			t.Errorf("method = %s, want PUT", got.method)
		}
		if !strings.Contains(got.path, "/job/roster-job") {
			t.Errorf("path = %q, want job grouping key", got.path)
		}
		if got.body == "" {
			t.Errorf("push body is empty")
		}
	default:
		t.Fatalf("Flush() made no request to the gateway")
	}
}
