/*
Package runmetrics records the outcome of a single launch as Prometheus
gauges and snapshots them to a node_exporter-style textfile. The registry
is private and local to one run rather than a process-lifetime global,
since the orchestrator exits after every invocation instead of serving
/metrics.
*/
package runmetrics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/localai-packaged/orchestrator/pkg/fsutil"
	"github.com/localai-packaged/orchestrator/pkg/orchestrator"
)

// Recorder owns one private registry for a single launch's metrics. Unlike
// a long-running server, nothing here is a package-global: each CLI
// invocation constructs its own Recorder and discards it after writing.
type Recorder struct {
	registry       *prometheus.Registry
	lastRunSuccess prometheus.Gauge
	lastRunUnix    prometheus.Gauge
	stackDuration  *prometheus.GaugeVec
	profile        *prometheus.GaugeVec
}

// NewRecorder builds a Recorder with a fresh, unexported registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.lastRunSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_last_run_success",
		Help: "Whether the most recent launch completed successfully (1) or failed (0).",
	})
	r.lastRunUnix = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_last_run_timestamp_seconds",
		Help: "Unix timestamp of the most recent launch.",
	})
	r.stackDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_stack_up_duration_seconds",
		Help: "Wall-clock duration of each stack's own compose up invocation.",
	}, []string{"stack"})
	r.profile = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_launch_profile",
		Help: "Set to 1 for the acceleration profile used by the most recent launch.",
	}, []string{"profile"})

	r.registry.MustRegister(r.lastRunSuccess, r.lastRunUnix, r.stackDuration, r.profile)
	return r
}

// RecordLaunch populates the registry's gauges from one completed (or
// failed) launch. at is the timestamp to stamp the run with, passed in by
// the caller rather than taken from time.Now so the recorder stays
// deterministic under test. stackDurations carries only the stacks that
// actually started their own `compose up` (see stack.BringUp); a stack
// that never started (e.g. the AI stack after an infra failure) is simply
// absent rather than reported as a fabricated zero.
func (r *Recorder) RecordLaunch(at time.Time, profile orchestrator.Profile, stackDurations map[string]time.Duration, ok bool) {
	if ok {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
	r.lastRunUnix.Set(float64(at.Unix()))
	r.stackDuration.Reset()
	for stackName, d := range stackDurations {
		r.stackDuration.WithLabelValues(stackName).Set(d.Seconds())
	}
	r.profile.Reset()
	r.profile.WithLabelValues(string(profile)).Set(1)
}

// WriteTextfile renders the registry in the Prometheus text exposition
// format and writes it atomically to path, ready for node_exporter's
// textfile collector to pick up.
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("runmetrics: gather: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("runmetrics: encode: %w", err)
		}
	}

	if err := fsutil.ReplaceAtomically(path, buf.Bytes()); err != nil {
		return fmt.Errorf("runmetrics: write %s: %w", path, err)
	}
	return nil
}
