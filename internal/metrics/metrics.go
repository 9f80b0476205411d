// Package metrics exposes Prometheus instrumentation for the interview
// gateway: HTTP request metrics plus session, voice, and synthesis counters.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepai",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prepai",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prepai",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prepai",
		Name:      "interview_active_sessions",
		Help:      "Number of interview sessions currently attached to this gateway",
	})

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepai",
		Name:      "interview_phase_transitions_total",
		Help:      "Interview phase transitions by target phase",
	}, []string{"phase"})

	synthesisAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepai",
		Name:      "speech_synthesis_attempts_total",
		Help:      "Speech synthesis attempts by strategy layer and outcome",
	}, []string{"layer", "outcome"})

	voiceQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prepai",
		Name:      "voice_queue_depth",
		Help:      "Number of utterances waiting in the voice queue",
	})

	channelReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prepai",
		Name:      "backend_channel_reconnects_total",
		Help:      "Reconnection attempts to the interview backend channel",
	})

	playbackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prepai",
		Name:      "audio_playback_duration_seconds",
		Help:      "Wall time spent playing a single audio response",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)

// SessionOpened and SessionClosed bracket a gateway-attached session.
func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }

// PhaseTransition records entry into a phase.
func PhaseTransition(phase string) {
	phaseTransitions.WithLabelValues(phase).Inc()
}

// SynthesisAttempt records one strategy-layer attempt. Outcome is "ok" or
// "error".
func SynthesisAttempt(layer string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	synthesisAttempts.WithLabelValues(layer, outcome).Inc()
}

// QueueDepth reports the current voice queue length.
func QueueDepth(n int) { voiceQueueDepth.Set(float64(n)) }

// ChannelReconnect counts one reconnection attempt.
func ChannelReconnect() { channelReconnects.Inc() }

// PlaybackObserved records a completed audio playback.
func PlaybackObserved(d time.Duration) { playbackDuration.Observe(d.Seconds()) }

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required so the middleware can wrap websocket upgrade endpoints.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("gateway metrics: underlying ResponseWriter does not support hijacking")
}

func (r *responseRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := r.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

// Middleware records request metrics with Prometheus labels.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  strconv.Itoa(rec.status),
			}

			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
