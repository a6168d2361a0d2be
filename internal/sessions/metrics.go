package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Connections   prometheus.Gauge
	OnlineUsers   prometheus.Gauge
	Events        *prometheus.CounterVec
	DroppedFrames prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crewlink",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open real-time connections.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crewlink",
			Name:      "online_users",
			Help:      "Users with at least one open connection.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewlink",
			Subsystem: "ws",
			Name:      "events_total",
			Help:      "Inbound events by name and outcome.",
		}, []string{"event", "outcome"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crewlink",
			Subsystem: "ws",
			Name:      "dropped_frames_total",
			Help:      "Outbound frames dropped because a connection's buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.OnlineUsers, m.Events, m.DroppedFrames)
	}
	return m
}
