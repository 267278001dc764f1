package tap

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camkit/viscatap/internal/trace"
)

const metricNamespace = "viscatap"

// Collectors builds prometheus collectors over the session's live counters.
// Everything reads through Stats(), so registration does not add state.
func (s *Session) Collectors() []prometheus.Collector {
	var cs []prometheus.Collector

	channels := []struct {
		name string
		get  func(Stats) ChannelStats
	}{
		{s.master.Name, func(st Stats) ChannelStats { return st.Master }},
		{s.slave.Name, func(st Stats) ChannelStats { return st.Slave }},
	}

	for _, ch := range channels {
		get := ch.get
		labels := prometheus.Labels{"channel": ch.name}
		cs = append(cs,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   metricNamespace,
				Subsystem:   "channel",
				Name:        "packets_total",
				Help:        "Successfully framed packets per channel.",
				ConstLabels: labels,
			}, func() float64 { return float64(get(s.Stats()).Packets) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   metricNamespace,
				Subsystem:   "channel",
				Name:        "unknown_total",
				Help:        "Packets classified as unknown per channel.",
				ConstLabels: labels,
			}, func() float64 { return float64(get(s.Stats()).Unknown) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   metricNamespace,
				Subsystem:   "channel",
				Name:        "errors_total",
				Help:        "Counted framing errors per channel.",
				ConstLabels: labels,
			}, func() float64 { return float64(get(s.Stats()).Errors) }),
		)
	}

	kinds := []struct {
		name string
		get  func(Stats) float64
		cnt  func(Stats) float64
	}{
		{"ack",
			func(st Stats) float64 { return st.Ack.Mean },
			func(st Stats) float64 { return float64(st.Ack.Count) }},
		{"done",
			func(st Stats) float64 { return st.Done.Mean },
			func(st Stats) float64 { return float64(st.Done.Count) }},
	}

	for _, k := range kinds {
		mean, count := k.get, k.cnt
		labels := prometheus.Labels{"kind": k.name}
		cs = append(cs,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   metricNamespace,
				Subsystem:   "latency",
				Name:        "mean_milliseconds",
				Help:        "Running mean reply latency.",
				ConstLabels: labels,
			}, func() float64 { return mean(s.Stats()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   metricNamespace,
				Subsystem:   "latency",
				Name:        "samples_total",
				Help:        "Latency samples included in the running mean.",
				ConstLabels: labels,
			}, func() float64 { return count(s.Stats()) }),
		)
	}

	return cs
}

// AdminMux serves the optional observation endpoints: prometheus metrics at
// /metrics and a live trace tail at /tail as server-sent events.
func AdminMux(s *Session, rep *trace.Reporter) (*http.ServeMux, error) {
	reg := prometheus.NewRegistry()
	for _, c := range s.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		id, lines := rep.Subscribe()
		defer rep.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	return mux, nil
}
