// Copyright 2020, Square, Inc.

// Package metrics provides Prometheus metrics for the lifecycle controller and
// the job manager.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
)

const namespace = "jobctl"

var _ lifecycle.Recorder = &Recorder{}

// Recorder is a lifecycle.Recorder that counts status queries, control actions,
// and wait outcomes.
type Recorder struct {
	statusQueries *prometheus.CounterVec   // labels: result
	actions       *prometheus.CounterVec   // labels: action, result
	waits         *prometheus.HistogramVec // labels: action, ok
	failures      *prometheus.CounterVec   // labels: action, kind
}

func NewRecorder() *Recorder {
	return &Recorder{
		statusQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_queries_total",
				Help:      "Job status queries by result (ok, transient, not-found, error)",
			},
			[]string{"result"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Control actions sent to one job, by action and result",
			},
			[]string{"action", "result"},
		),
		waits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "wait_duration_seconds",
				Help:      "Duration of waits and control actions on a batch of jobs",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"action", "ok"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_failures_total",
				Help:      "Jobs that did not converge, by action and failure kind",
			},
			[]string{"action", "kind"},
		),
	}
}

// Register registers all metrics with the registry.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{r.statusQueries, r.actions, r.waits, r.failures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) StatusQueried(err error) {
	r.statusQueries.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) ActionSent(action string, err error) {
	r.actions.WithLabelValues(action, result(err)).Inc()
}

func (r *Recorder) Finished(res lifecycle.Result) {
	action := res.Action
	if action == "" {
		action = "wait"
	}
	ok := "true"
	if !res.OK() {
		ok = "false"
	}
	r.waits.WithLabelValues(action, ok).Observe(res.Elapsed.Seconds())
	for _, f := range res.Failures {
		r.failures.WithLabelValues(action, string(f.Kind)).Inc()
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case serr.IsTransient(err):
		return "transient"
	case serr.IsRejected(err):
		return "rejected"
	case serr.IsNotFound(err):
		return "not-found"
	}
	return "error"
}

// --------------------------------------------------------------------------

// A JobLister lists jobs. The job manager store is one.
type JobLister interface {
	List(context.Context, proto.ListFilter) ([]proto.Job, error)
}

var jobsDesc = prometheus.NewDesc(
	prometheus.BuildFQName("job_manager", "", "jobs"),
	"Jobs in the job manager by status and kind",
	[]string{"status", "kind"},
	nil,
)

// JobCollector is a prometheus.Collector that reports the number of jobs by
// status and kind when scraped.
type JobCollector struct {
	jobs    JobLister
	timeout time.Duration
}

func NewJobCollector(jobs JobLister, timeout time.Duration) *JobCollector {
	return &JobCollector{
		jobs:    jobs,
		timeout: timeout,
	}
}

func (c *JobCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- jobsDesc
}

func (c *JobCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	jobs, err := c.jobs.List(ctx, proto.ListFilter{})
	if err != nil {
		log.Errorf("collecting job metrics: %s", err)
		return
	}
	type key struct{ status, kind string }
	count := map[key]int{}
	for _, j := range jobs {
		count[key{string(proto.ParseStatus(string(j.Status))), j.Kind}]++
	}
	for k, n := range count {
		ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.GaugeValue, float64(n), k.status, k.kind)
	}
}
