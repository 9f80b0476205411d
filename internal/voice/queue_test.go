package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeSpeaker records every utterance and can be told to fail specific texts.
type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	failOn  map[string]error
	delay   time.Duration
	stopped int
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{failOn: make(map[string]error)}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[text]; ok {
		return err
	}
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

func (f *fakeSpeaker) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func newTestQueue(sp Speaker) *Queue {
	q := NewQueue(sp, zap.NewNop())
	q.SetGap(time.Millisecond)
	return q
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := q.GetStatus()
		if st.QueueLength == 0 && !st.Speaking {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("queue never drained: %+v", q.GetStatus())
}

func TestEnqueueSpeaksInOrder(t *testing.T) {
	sp := newFakeSpeaker()
	q := newTestQueue(sp)

	q.Enqueue("first", "a")
	q.Enqueue("second", "b")
	q.Enqueue("third", "c")
	waitIdle(t, q)

	got := sp.list()
	if len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Fatalf("expected strict enqueue order, got %v", got)
	}
}

func TestDuplicateIDSpokenOnce(t *testing.T) {
	sp := newFakeSpeaker()
	q := newTestQueue(sp)

	q.Enqueue("Welcome!", "m1")
	waitIdle(t, q)
	q.Enqueue("Welcome!", "m1")
	waitIdle(t, q)

	if got := sp.list(); len(got) != 1 {
		t.Fatalf("expected exactly one synthesis, got %v", got)
	}
}

func TestDuplicateIDBeforeDequeueSpokenOnce(t *testing.T) {
	sp := newFakeSpeaker()
	sp.delay = 20 * time.Millisecond
	q := newTestQueue(sp)

	q.Enqueue("hello there", "m1")
	q.Enqueue("hello there", "m1")
	waitIdle(t, q)

	if got := sp.list(); len(got) != 1 {
		t.Fatalf("expected one synthesis for duplicate pending id, got %v", got)
	}
}

func TestFailureDoesNotStallQueue(t *testing.T) {
	sp := newFakeSpeaker()
	sp.failOn["bad"] = errors.New("synthesis exhausted")
	q := newTestQueue(sp)

	q.Enqueue("bad", "x")
	q.Enqueue("good", "y")
	waitIdle(t, q)

	got := sp.list()
	if len(got) != 1 || got[0] != "good" {
		t.Fatalf("next item must still play after a failure, got %v", got)
	}

	// Failed id is eligible again.
	delete(sp.failOn, "bad")
	q.Enqueue("bad", "x")
	waitIdle(t, q)
	got = sp.list()
	if len(got) != 2 || got[1] != "bad" {
		t.Fatalf("failed id should be re-enqueueable, got %v", got)
	}
}

func TestStopAllClearsImmediately(t *testing.T) {
	sp := newFakeSpeaker()
	sp.delay = 50 * time.Millisecond
	q := newTestQueue(sp)

	q.Enqueue("one", "1")
	q.Enqueue("two", "2")
	q.Enqueue("three", "3")
	q.StopAll()

	st := q.GetStatus()
	if st.QueueLength != 0 || st.Speaking {
		t.Fatalf("StopAll must report empty and not speaking, got %+v", st)
	}

	sp.mu.Lock()
	stopped := sp.stopped
	sp.mu.Unlock()
	if stopped == 0 {
		t.Fatalf("StopAll must signal the speaker to stop")
	}
}

func TestDisableImpliesStopAll(t *testing.T) {
	sp := newFakeSpeaker()
	q := newTestQueue(sp)

	q.Enqueue("queued", "1")
	q.SetEnabled(false)

	st := q.GetStatus()
	if st.Enabled || st.QueueLength != 0 {
		t.Fatalf("disable should clear the queue, got %+v", st)
	}

	q.Enqueue("while disabled", "2")
	if q.GetStatus().QueueLength != 0 {
		t.Fatalf("disabled queue must reject enqueues silently")
	}

	q.SetEnabled(true)
	if st := q.GetStatus(); st.QueueLength != 0 {
		t.Fatalf("re-enabling must not resurrect cleared items, got %+v", st)
	}
}

func TestClearSpokenHistoryAllowsReplay(t *testing.T) {
	sp := newFakeSpeaker()
	q := newTestQueue(sp)

	q.Enqueue("again", "r1")
	waitIdle(t, q)
	q.ClearSpokenHistory()
	q.Enqueue("again", "r1")
	waitIdle(t, q)

	if got := sp.list(); len(got) != 2 {
		t.Fatalf("cleared history should permit replay, got %v", got)
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	sp := newFakeSpeaker()
	q := newTestQueue(sp)

	q.Enqueue("   ", "")
	q.Enqueue("", "id")
	waitIdle(t, q)

	if got := sp.list(); len(got) != 0 {
		t.Fatalf("whitespace-only text must be dropped, got %v", got)
	}
}

func TestContentHashDedup(t *testing.T) {
	sp := newFakeSpeaker()
	q := newTestQueue(sp)

	q.Enqueue("Same  Content", "")
	waitIdle(t, q)
	q.Enqueue("same content", "")
	waitIdle(t, q)

	if got := sp.list(); len(got) != 1 {
		t.Fatalf("normalized content hash should dedup, got %v", got)
	}
}
