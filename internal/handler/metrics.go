package handler

import (
	"bufio"
	"fmt"
	"net/http"

	"github.com/securenotepad/notepad/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

type metricFamily struct {
	name    string
	help    string
	kind    string
	samples []metricSample
}

type metricSample struct {
	suffix string // label set or summary suffix
	value  string
}

func counter(name, help string, v uint64) metricFamily {
	return metricFamily{name: name, help: help, kind: "counter", samples: []metricSample{{value: fmt.Sprint(v)}}}
}

func families(s metrics.Snapshot) []metricFamily {
	return []metricFamily{
		counter("notepad_users_registered_total", "Accounts created.", s.UsersRegistered),
		{
			name: "notepad_logins_total",
			help: "Login attempts by outcome.",
			kind: "counter",
			samples: []metricSample{
				{suffix: `{result="success"}`, value: fmt.Sprint(s.LoginsSucceeded)},
				{suffix: `{result="failure"}`, value: fmt.Sprint(s.LoginsFailed)},
			},
		},
		counter("notepad_auth_rejected_total", "Requests rejected by the bearer token gate.", s.AuthRejected),
		counter("notepad_notes_created_total", "Notes created.", s.NotesCreated),
		counter("notepad_notes_updated_total", "Notes updated.", s.NotesUpdated),
		counter("notepad_notes_deleted_total", "Notes deleted.", s.NotesDeleted),
		counter("notepad_rate_limited_total", "Requests answered with 429.", s.RateLimited),
		{
			name: "notepad_http_request_duration_seconds",
			help: "Request latency.",
			kind: "summary",
			samples: []metricSample{
				{suffix: "_count", value: fmt.Sprint(s.RequestDurationCount)},
				{suffix: "_sum", value: fmt.Sprintf("%.6f", float64(s.RequestDurationTotalNs)/1e9)},
			},
		},
	}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	bw := bufio.NewWriter(w)
	for _, f := range families(h.snapshotter.Snapshot()) {
		fmt.Fprintf(bw, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
		for _, s := range f.samples {
			fmt.Fprintf(bw, "%s%s %s\n", f.name, s.suffix, s.value)
		}
	}
	_ = bw.Flush()
}
