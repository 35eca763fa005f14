// Package metrics exports analysis results in the Prometheus text format so
// node_exporter's textfile collector can pick them up.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"vidqc/internal/qc"
)

const namespace = "vidqc"

// Collector holds the gauges for one export.
type Collector struct {
	registry *prometheus.Registry
	findings *prometheus.GaugeVec
	failed   *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	elapsed  *prometheus.GaugeVec
	lastRun  *prometheus.GaugeVec
}

// NewCollector registers the vidqc gauges on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		findings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "findings",
			Help:      "Findings reported by a quality check.",
		}, []string{"file", "check"}),
		failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_failed",
			Help:      "1 when a quality check could not complete.",
		}, []string{"file", "check"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Media duration reported by ffprobe.",
		}, []string{"file"}),
		elapsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_seconds",
			Help:      "Wall time spent analysing the file.",
		}, []string{"file"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the analysis finished.",
		}, []string{"file"}),
	}
	c.registry.MustRegister(c.findings, c.failed, c.duration, c.elapsed, c.lastRun)
	return c
}

// Observe records one report. Nil reports are ignored.
func (c *Collector) Observe(report *qc.Report) {
	if report == nil {
		return
	}
	file := report.File
	for _, check := range report.Checks {
		c.findings.WithLabelValues(file, check.Name).Set(float64(check.Count))
		failed := 0.0
		if check.Status == qc.StatusError {
			failed = 1
		}
		c.failed.WithLabelValues(file, check.Name).Set(failed)
	}
	c.duration.WithLabelValues(file).Set(report.Metadata.Duration)
	c.elapsed.WithLabelValues(file).Set(report.Elapsed().Seconds())
	if !report.FinishedAt.IsZero() {
		c.lastRun.WithLabelValues(file).Set(float64(report.FinishedAt.Unix()))
	}
}

// Gatherer exposes the registry, e.g. for promhttp or testutil.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteFile writes the collected metrics to path atomically.
func (c *Collector) WriteFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("metrics: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Export observes reports and writes them to path.
func Export(path string, reports []*qc.Report) error {
	c := NewCollector()
	for _, report := range reports {
		c.Observe(report)
	}
	return c.WriteFile(path)
}
