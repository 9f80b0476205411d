package voice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
)

const defaultItemGap = 500 * time.Millisecond

// Item is one unit of text queued for spoken playback. Created on enqueue,
// destroyed on dequeue, success or failure.
type Item struct {
	ID         string
	Text       string
	EnqueuedAt time.Time
}

// Status is a read-only snapshot of the queue.
type Status struct {
	QueueLength int  `json:"queueLength"`
	Speaking    bool `json:"speaking"`
	Enabled     bool `json:"enabled"`
}

// Queue serializes spoken output from all producers (live messages,
// encouragement nudges, the final evaluation) into a strict FIFO stream. At
// most one synthesis call is in flight at any time, and a given item id is
// spoken at most once until ClearSpokenHistory.
type Queue struct {
	speaker Speaker
	log     *zap.Logger
	gap     time.Duration

	mu         sync.Mutex
	items      []Item
	spoken     map[string]struct{}
	enabled    bool
	processing bool
	gen        int
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewQueue(speaker Speaker, log *zap.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		speaker: speaker,
		log:     log,
		gap:     defaultItemGap,
		spoken:  make(map[string]struct{}),
		enabled: true,
		ctx:     ctx,
		cancel:  cancel,
	}
	return q
}

// SetGap overrides the inter-item pause (tests shrink it).
func (q *Queue) SetGap(d time.Duration) {
	q.mu.Lock()
	q.gap = d
	q.mu.Unlock()
}

// ItemID derives a stable voice item id from text alone.
func ItemID(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(strings.ToLower(text)), " ")))
	return "v_" + hex.EncodeToString(sum[:8])
}

// Enqueue appends an utterance to the tail of the queue. Empty text, a
// disabled queue, and an already-spoken id are all silently dropped: this is a
// best-effort channel. When no playback loop is running, one is started.
func (q *Queue) Enqueue(text, id string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if id == "" {
		id = ItemID(text)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled {
		return
	}
	if _, done := q.spoken[id]; done {
		return
	}
	for _, it := range q.items {
		if it.ID == id {
			return
		}
	}
	q.items = append(q.items, Item{ID: id, Text: text, EnqueuedAt: time.Now()})
	metrics.QueueDepth(len(q.items))
	if !q.processing {
		q.processing = true
		go q.loop(q.gen, q.ctx)
	}
}

// loop drains the queue one item at a time. The id is marked spoken before
// synthesis starts so a mid-speech duplicate never re-enters the still
// draining queue; on failure the mark is removed so the same id stays
// eligible for a future resend.
func (q *Queue) loop(gen int, ctx context.Context) {
	for {
		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			return
		}
		if !q.enabled || len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.items = q.items[1:]
		metrics.QueueDepth(len(q.items))
		q.spoken[it.ID] = struct{}{}
		gap := q.gap
		q.mu.Unlock()

		if err := q.speaker.Speak(ctx, it.Text); err != nil {
			q.log.Warn("utterance dropped, continuing queue",
				zap.String("itemId", it.ID), zap.Error(err))
			q.mu.Lock()
			delete(q.spoken, it.ID)
			q.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(gap):
		}
	}
}

// StopAll clears pending items, halts the processing loop, and stops any
// in-flight synthesis. Safe to call from any state.
func (q *Queue) StopAll() {
	q.mu.Lock()
	q.items = nil
	metrics.QueueDepth(0)
	q.processing = false
	q.gen++
	q.cancel()
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.mu.Unlock()
	q.speaker.Stop()
}

// SetEnabled toggles the queue. Disabling implies StopAll; re-enabling does
// not resurrect anything already cleared.
func (q *Queue) SetEnabled(enabled bool) {
	q.mu.Lock()
	q.enabled = enabled
	q.mu.Unlock()
	if !enabled {
		q.StopAll()
	}
}

// ClearSpokenHistory empties only the spoken-id set; queued and playing items
// are unaffected.
func (q *Queue) ClearSpokenHistory() {
	q.mu.Lock()
	q.spoken = make(map[string]struct{})
	q.mu.Unlock()
}

// GetStatus reports queue depth, whether the loop is actively speaking, and
// whether the queue is enabled. Read-only.
func (q *Queue) GetStatus() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		QueueLength: len(q.items),
		Speaking:    q.processing,
		Enabled:     q.enabled,
	}
}
