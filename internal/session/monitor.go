package session

import (
	"sync"
	"time"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

const (
	monitorInterval = 10 * time.Second
	idleThreshold   = 5 * time.Second
)

// Monitor is the sampled code-activity reporter: a two-state machine (active
// or idle) evaluated on a fixed interval against a single threshold, used by
// the backend for adaptive pacing. It runs only while the session is in the
// coding phase.
type Monitor struct {
	interval  time.Duration
	threshold time.Duration
	report    func(models.CodeActivityData)

	mu       sync.Mutex
	lastEdit time.Time
	codeLen  int
	stop     chan struct{}
}

func NewMonitor(report func(models.CodeActivityData)) *Monitor {
	return &Monitor{
		interval:  monitorInterval,
		threshold: idleThreshold,
		report:    report,
	}
}

// SetTimings overrides interval and idle threshold (tests shrink them).
func (m *Monitor) SetTimings(interval, threshold time.Duration) {
	m.mu.Lock()
	m.interval = interval
	m.threshold = threshold
	m.mu.Unlock()
}

// Touch records an edit. Called on every code buffer mutation.
func (m *Monitor) Touch(codeLen int) {
	m.mu.Lock()
	m.lastEdit = time.Now()
	m.codeLen = codeLen
	m.mu.Unlock()
}

// Start begins sampling. Idempotent while running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.lastEdit = time.Now()
	interval := m.interval
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop tears the sampler down immediately. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.mu.Unlock()
}

// Running reports whether the sampler is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

func (m *Monitor) sample() {
	m.mu.Lock()
	idleFor := time.Since(m.lastEdit)
	threshold := m.threshold
	codeLen := m.codeLen
	m.mu.Unlock()

	m.report(models.CodeActivityData{
		Active:      idleFor <= threshold,
		IdleSeconds: int(idleFor.Seconds()),
		CodeLength:  codeLen,
		Timestamp:   time.Now().Unix(),
	})
}
