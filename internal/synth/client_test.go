package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/voice"
)

type recordSink struct {
	mu      sync.Mutex
	played  [][]byte
	native  []string
	voices  []voice.NativeVoice
	playErr error
	stops   int
}

func (s *recordSink) PlayAudio(ctx context.Context, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.played = append(s.played, data)
	return nil
}

func (s *recordSink) SpeakNative(ctx context.Context, text, voiceName string, rate, pitch, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.native = append(s.native, text)
	return nil
}

func (s *recordSink) NativeVoices() []voice.NativeVoice { return s.voices }

func (s *recordSink) StopPlayback() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func bigAudio(prefix []byte) []byte {
	out := make([]byte, 4096)
	copy(out, prefix)
	return out
}

type ttsServer struct {
	binaryBody   []byte
	binaryStatus int
	base64Body   []byte
	healthStatus int

	mu          sync.Mutex
	binaryCalls int
	base64Calls int
}

func (ts *ttsServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := ts.healthStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	})
	mux.HandleFunc("/synthesize", func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.binaryCalls++
		ts.mu.Unlock()
		if ts.binaryStatus != 0 {
			w.WriteHeader(ts.binaryStatus)
			return
		}
		_, _ = w.Write(ts.binaryBody)
	})
	mux.HandleFunc("/synthesize/base64", func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.base64Calls++
		ts.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audio":       base64.StdEncoding.EncodeToString(ts.base64Body),
			"contentType": "audio/wav",
		})
	})
	return mux
}

func newTestClient(t *testing.T, ts *ttsServer, sink voice.Sink) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(ts.handler())
	c := NewClient(srv.URL, sink, zap.NewNop())
	return c, srv.Close
}

func TestSpeakBinarySuccess(t *testing.T) {
	ts := &ttsServer{binaryBody: bigAudio([]byte("ID3"))}
	sink := &recordSink{}
	c, stop := newTestClient(t, ts, sink)
	defer stop()

	if err := c.Speak(context.Background(), "hello", Options{}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(sink.played) != 1 {
		t.Fatalf("expected one buffered playback, got %d", len(sink.played))
	}
	if ts.base64Calls != 0 {
		t.Fatalf("base64 endpoint should not be touched on success")
	}
}

func TestTinyPayloadFallsThroughToBase64(t *testing.T) {
	ts := &ttsServer{
		binaryBody: make([]byte, 40), // implausibly small, corruption-shaped
		base64Body: bigAudio([]byte("RIFF")),
	}
	sink := &recordSink{}
	c, stop := newTestClient(t, ts, sink)
	defer stop()

	if err := c.Speak(context.Background(), "hello", Options{}); err != nil {
		t.Fatalf("speak should succeed via base64 layer: %v", err)
	}
	if ts.base64Calls != 1 {
		t.Fatalf("base64 endpoint should have been used, calls=%d", ts.base64Calls)
	}
	if len(sink.native) != 0 {
		t.Fatalf("native fallback should not run when base64 succeeds")
	}
}

func TestNetworkFailureSkipsBase64(t *testing.T) {
	ts := &ttsServer{
		binaryStatus: http.StatusBadGateway,
		base64Body:   bigAudio([]byte("RIFF")),
	}
	sink := &recordSink{voices: []voice.NativeVoice{{Name: "Alex", Lang: "en-US"}}}
	c, stop := newTestClient(t, ts, sink)
	defer stop()

	if err := c.Speak(context.Background(), "hello", Options{}); err != nil {
		t.Fatalf("speak should succeed via native layer: %v", err)
	}
	if ts.base64Calls != 0 {
		t.Fatalf("base64 retry is reserved for corruption-shaped failures")
	}
	if len(sink.native) != 1 {
		t.Fatalf("native layer should have spoken, got %v", sink.native)
	}
}

func TestUnavailableServiceGoesStraightToNative(t *testing.T) {
	ts := &ttsServer{healthStatus: http.StatusServiceUnavailable, binaryBody: bigAudio([]byte("ID3"))}
	sink := &recordSink{}
	c, stop := newTestClient(t, ts, sink)
	defer stop()

	if c.CheckServiceHealth(context.Background()) {
		t.Fatalf("health probe should fail")
	}
	if err := c.Speak(context.Background(), "hello", Options{}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if ts.binaryCalls != 0 {
		t.Fatalf("remote layers must be skipped while unavailable")
	}
	if len(sink.native) != 1 {
		t.Fatalf("expected native synthesis, got %v", sink.native)
	}
}

func TestHealthProbeRecovers(t *testing.T) {
	ts := &ttsServer{binaryBody: bigAudio([]byte("ID3"))}
	sink := &recordSink{}
	c, stop := newTestClient(t, ts, sink)
	defer stop()

	if !c.CheckServiceHealth(context.Background()) {
		t.Fatalf("expected healthy probe")
	}
	if !c.ServiceAvailable() {
		t.Fatalf("availability flag not recorded")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.normalized()
	if opts.Voice != "en-US-aria" || opts.Rate != 1.0 || opts.Volume != 1.0 || opts.Pitch != 1.0 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	custom := Options{Voice: "x", Rate: 1.2}.normalized()
	if custom.Voice != "x" || custom.Rate != 1.2 || custom.Pitch != 1.0 {
		t.Fatalf("custom options clobbered: %+v", custom)
	}
}

func TestSniffContainer(t *testing.T) {
	cases := []struct {
		data []byte
		want string
	}{
		{[]byte("RIFFxxxxWAVE"), "wav"},
		{[]byte("ID3\x04\x00"), "mp3"},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, "mp3"},
		{[]byte("OggS\x00"), "ogg"},
		{[]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, "webm"},
		{[]byte("plain text"), ""},
		{[]byte{0x01}, ""},
	}
	for _, tc := range cases {
		if got := SniffContainer(tc.data); got != tc.want {
			t.Fatalf("SniffContainer(%q) = %q, want %q", tc.data, got, tc.want)
		}
	}
}

func TestPickPreferredVoice(t *testing.T) {
	voices := []voice.NativeVoice{
		{Name: "Remote Robot", Lang: "en-GB", Local: false},
		{Name: "Microsoft Aria Natural", Lang: "en-US", Local: false},
		{Name: "Alex", Lang: "en-US", Local: true},
	}
	if got := PickPreferredVoice(voices); got != "Microsoft Aria Natural" {
		t.Fatalf("expected natural voice preferred, got %q", got)
	}

	noNatural := []voice.NativeVoice{
		{Name: "Remote Robot", Lang: "en-GB", Local: false},
		{Name: "Alex", Lang: "en-US", Local: true},
	}
	if got := PickPreferredVoice(noNatural); got != "Alex" {
		t.Fatalf("expected local voice preferred, got %q", got)
	}

	foreign := []voice.NativeVoice{{Name: "Yuki", Lang: "ja-JP"}}
	if got := PickPreferredVoice(foreign); got != "Yuki" {
		t.Fatalf("expected any voice as last resort, got %q", got)
	}

	if got := PickPreferredVoice(nil); got != "" {
		t.Fatalf("expected empty for no voices, got %q", got)
	}
}

func TestAllLayersFailPropagates(t *testing.T) {
	ts := &ttsServer{binaryStatus: http.StatusInternalServerError}
	sink := &recordSink{}
	c, stop := newTestClient(t, ts, sink)
	defer stop()

	// Native layer fails too: the sink has no voices and errors on native.
	failing := &nativeFailSink{recordSink: sink}
	c.sink = failing

	if err := c.Speak(context.Background(), "hello", Options{}); err == nil {
		t.Fatalf("expected full-stack failure to propagate")
	}
}

type nativeFailSink struct{ *recordSink }

func (s *nativeFailSink) SpeakNative(ctx context.Context, text, voiceName string, rate, pitch, volume float64) error {
	return context.DeadlineExceeded
}
