// Package metrics records operational metrics from roster and survey imports
// behind a small, backend-agnostic interface.
//
// A process-wide backend defaults to a no-op implementation, so every helper
// is safe to call when no real backend is configured. Concrete systems live in
// subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Metric names emitted by the helpers below.
const (
	StepTotal     = "etl_step_total"
	StepDuration  = "etl_step_duration_seconds"
	RecordsTotal  = "etl_records_total"
	FilesTotal    = "etl_files_total"
	SectionsTotal = "etl_sections_total"
)

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil restores the no-op one.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one execution of an import step (read, catalog, load...)
// and observes its duration, partitioned by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": status(err)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordFile counts one source file by kind (roster, survey) and outcome.
// Files skipped because they were already imported report status "skipped".
func RecordFile(job, kind, outcome string) {
	current().IncCounter(FilesTotal, 1, Labels{"job": job, "kind": kind, "status": outcome})
}

// RecordRows increments the row counter for kind, e.g. "processed",
// "students", "questionnaires".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordSections counts section rows written for one section model.
func RecordSections(job, model string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(SectionsTotal, float64(delta), Labels{"job": job, "section": model})
}
