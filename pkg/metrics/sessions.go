package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics counts authorization session lifecycle transitions.
type SessionMetrics struct {
	granted *prometheus.CounterVec
	ended   *prometheus.CounterVec
	swept   prometheus.Counter
}

// NewSessionMetrics registers the session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	granted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authorization_sessions_granted",
		Help: "Authorization sessions granted, by path.",
	}, []string{"path"})
	ended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authorization_sessions_ended",
		Help: "Authorization sessions deactivated, by reason.",
	}, []string{"reason"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authorization_sessions_swept",
		Help: "Sessions deactivated by the background sweep.",
	})
	reg.MustRegister(granted, ended, swept)
	return &SessionMetrics{granted: granted, ended: ended, swept: swept}
}

// IncGranted counts a grant for the given path (privileged or approved).
func (s *SessionMetrics) IncGranted(path string) {
	if s == nil || s.granted == nil {
		return
	}
	s.granted.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncEnded counts a deactivation with the recorded reason.
func (s *SessionMetrics) IncEnded(reason string) {
	if s == nil || s.ended == nil {
		return
	}
	s.ended.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncSwept counts one session cleaned up by the sweep.
func (s *SessionMetrics) IncSwept() {
	if s == nil || s.swept == nil {
		return
	}
	s.swept.Inc()
}
