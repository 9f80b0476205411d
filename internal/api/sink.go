package api

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/voice"
)

// UI frame types, browser <-> gateway.
const (
	frameState         = "state"
	frameNotification  = "notification"
	framePlayAudio     = "play-audio"
	frameSpeakNative   = "speak-native"
	frameStopPlayback  = "stop-playback"
	framePlaybackDone  = "playback-done"
	framePlaybackError = "playback-error"
	frameNativeVoices  = "native-voices"
)

// uiConn serializes all writes to the browser socket. The controller's state
// pushes, the sink's playback commands, and notification frames share it.
type uiConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (u *uiConn) writeJSON(v any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn.WriteJSON(v)
}

type playAudioFrame struct {
	Type        string  `json:"type"`
	RequestID   string  `json:"requestId"`
	Audio       []byte  `json:"audio"` // base64 over the wire
	ContentType string  `json:"contentType"`
	Text        string  `json:"text,omitempty"`
	Voice       string  `json:"voice,omitempty"`
	Rate        float64 `json:"rate,omitempty"`
	Pitch       float64 `json:"pitch,omitempty"`
	Volume      float64 `json:"volume,omitempty"`
}

type ackFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Error     string `json:"error,omitempty"`
}

// wsSink implements voice.Sink by shipping audio (or native synthesis
// commands) to the browser and blocking until the browser acks completion.
// The browser reports its native voice inventory once, right after connect.
type wsSink struct {
	out *uiConn
	log *zap.Logger

	mu      sync.Mutex
	pending map[string]chan error
	voices  []voice.NativeVoice
}

func newWSSink(out *uiConn, log *zap.Logger) *wsSink {
	return &wsSink{out: out, log: log, pending: make(map[string]chan error)}
}

func (s *wsSink) await(ctx context.Context, id string) error {
	s.mu.Lock()
	ch := make(chan error, 1)
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve completes a pending playback wait. Unknown ids are ignored; they
// belong to playbacks already cancelled.
func (s *wsSink) resolve(id string, playbackErr string) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	if playbackErr != "" {
		ch <- errors.New(playbackErr)
		return
	}
	ch <- nil
}

func (s *wsSink) setVoices(voices []voice.NativeVoice) {
	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()
}

func (s *wsSink) PlayAudio(ctx context.Context, data []byte, contentType string) error {
	id := uuid.NewString()
	frame := playAudioFrame{
		Type: framePlayAudio, RequestID: id,
		Audio: data, ContentType: contentType,
	}
	if err := s.out.writeJSON(frame); err != nil {
		return err
	}
	return s.await(ctx, id)
}

func (s *wsSink) SpeakNative(ctx context.Context, text, voiceName string, rate, pitch, volume float64) error {
	id := uuid.NewString()
	frame := playAudioFrame{
		Type: frameSpeakNative, RequestID: id,
		Text: text, Voice: voiceName, Rate: rate, Pitch: pitch, Volume: volume,
	}
	if err := s.out.writeJSON(frame); err != nil {
		return err
	}
	return s.await(ctx, id)
}

func (s *wsSink) NativeVoices() []voice.NativeVoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]voice.NativeVoice, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s *wsSink) StopPlayback() {
	if err := s.out.writeJSON(ackFrame{Type: frameStopPlayback}); err != nil {
		s.log.Debug("stop-playback frame dropped", zap.Error(err))
	}
}
