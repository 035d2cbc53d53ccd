package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scan: スキャンセッションのカウンタ類。nil のままでも呼び出せる
type Scan struct {
	frames   prometheus.Counter
	outcomes *prometheus.CounterVec
	running  prometheus.Gauge
	sessions *prometheus.CounterVec
}

func NewScan(reg prometheus.Registerer) *Scan {
	m := &Scan{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "scan",
			Name:      "frames_total",
			Help:      "Frames pulled from the capture source.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "scan",
			Name:      "outcomes_total",
			Help:      "Per-identifier scan outcomes.",
		}, []string{"outcome"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "attendance",
			Subsystem: "scan",
			Name:      "running",
			Help:      "1 while a scan session is capturing.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Subsystem: "scan",
			Name:      "sessions_ended_total",
			Help:      "Scan sessions ended, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.frames, m.outcomes, m.running, m.sessions)
	return m
}

func (m *Scan) Frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

func (m *Scan) Outcome(kind string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind).Inc()
}

func (m *Scan) Started() {
	if m == nil {
		return
	}
	m.running.Set(1)
}

func (m *Scan) Ended(reason string) {
	if m == nil {
		return
	}
	m.running.Set(0)
	m.sessions.WithLabelValues(reason).Inc()
}
