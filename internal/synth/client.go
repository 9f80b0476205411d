// Package synth turns one text span into audible output with layered
// fallback: a remote neural TTS service (binary stream, then a base64 encoded
// alternate endpoint), then the client's native speech synthesis.
package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
	"github.com/Ravindra162/prepAI-sub000/internal/voice"
)

const (
	defaultVoiceID = "en-US-aria"

	// Payloads smaller than this are treated as corrupted: no real utterance
	// encodes this small.
	minAudioBytes = 1024

	defaultLoadTimeout = 60 * time.Second
	healthTimeout      = 3 * time.Second
)

// ErrAudioCorrupt marks format/corruption-shaped failures, the only class
// that routes to the base64 alternate endpoint.
var ErrAudioCorrupt = errors.New("audio payload corrupted or implausibly small")

// Options carries the voice identifier and prosody parameters for one
// utterance. Zero values fall back to Defaults().
type Options struct {
	Voice  string  // voice identifier, default "en-US-aria"
	Rate   float64 // speaking rate multiplier, default 1.0
	Volume float64 // volume multiplier, default 1.0
	Pitch  float64 // pitch multiplier, default 1.0
}

// Defaults returns the documented option defaults.
func Defaults() Options {
	return Options{Voice: defaultVoiceID, Rate: 1.0, Volume: 1.0, Pitch: 1.0}
}

func (o Options) normalized() Options {
	d := Defaults()
	if o.Voice == "" {
		o.Voice = d.Voice
	}
	if o.Rate == 0 {
		o.Rate = d.Rate
	}
	if o.Volume == 0 {
		o.Volume = d.Volume
	}
	if o.Pitch == 0 {
		o.Pitch = d.Pitch
	}
	return o
}

// strategy is one fallback layer: a uniform (text, options) -> played-audio
// contract tried in order by Speak. A layer marked onlyAfterCorrupt is skipped
// unless the previous layer failed for a format/corruption-shaped reason.
type strategy struct {
	name             string
	run              func(ctx context.Context, text string, opts Options) error
	onlyAfterCorrupt bool
}

// Client resolves one utterance request to audible playback through the
// session's sink, tracking remote service health across calls. Construct one
// per session; it is not an ambient singleton.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sink       voice.Sink
	log        *zap.Logger

	available   atomic.Bool
	loadTimeout time.Duration
}

func NewClient(baseURL string, sink voice.Sink, log *zap.Logger) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		sink:        sink,
		log:         log,
		loadTimeout: defaultLoadTimeout,
	}
	c.available.Store(true)
	return c
}

// SetHTTPClient overrides the underlying HTTP client (tests).
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// CheckServiceHealth probes the remote synthesis service and records the
// result for subsequent Speak calls. An unreachable service is not itself an
// error surface; it just routes future calls to fallback.
func (c *Client) CheckServiceHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		c.available.Store(false)
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("tts health check failed, routing to fallback", zap.Error(err))
		c.available.Store(false)
		return false
	}
	defer resp.Body.Close()
	ok := resp.StatusCode == http.StatusOK
	c.available.Store(ok)
	return ok
}

// ServiceAvailable reports the last recorded health probe result.
func (c *Client) ServiceAvailable() bool { return c.available.Load() }

// Speak tries each synthesis layer in order until one succeeds. It returns
// once audio has finished playing; only a full-stack failure propagates.
func (c *Client) Speak(ctx context.Context, text string, opts Options) error {
	opts = opts.normalized()

	var layers []strategy
	if c.available.Load() {
		layers = append(layers,
			strategy{name: "remote-binary", run: c.speakBinary},
			strategy{name: "remote-base64", run: c.speakBase64, onlyAfterCorrupt: true},
		)
	}
	layers = append(layers, strategy{name: "native", run: c.speakNative})

	var lastErr error
	for _, layer := range layers {
		if layer.onlyAfterCorrupt && !errors.Is(lastErr, ErrAudioCorrupt) {
			continue
		}
		err := layer.run(ctx, text, opts)
		metrics.SynthesisAttempt(layer.name, err)
		if err == nil {
			return nil
		}
		c.log.Warn("synthesis layer failed, falling through",
			zap.String("layer", layer.name), zap.Error(err))
		lastErr = err
	}
	return fmt.Errorf("all synthesis layers failed: %w", lastErr)
}

// StopSpeaking halts in-progress native synthesis immediately. Remote audio
// cancellation is the caller's responsibility via sink teardown.
func (c *Client) StopSpeaking() {
	c.sink.StopPlayback()
}

type synthesizeRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
	Pitch  float64 `json:"pitch"`
}

func (c *Client) speakBinary(ctx context.Context, text string, opts Options) error {
	audio, err := c.fetch(ctx, "/synthesize", text, opts)
	if err != nil {
		return err
	}
	if len(audio) < minAudioBytes {
		return fmt.Errorf("%w: %d bytes", ErrAudioCorrupt, len(audio))
	}
	return c.play(ctx, audio, "audio/mpeg")
}

type base64Response struct {
	Audio       string `json:"audio"`
	ContentType string `json:"contentType"`
}

func (c *Client) speakBase64(ctx context.Context, text string, opts Options) error {
	body, err := c.fetch(ctx, "/synthesize/base64", text, opts)
	if err != nil {
		return err
	}
	var resp base64Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode base64 response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return fmt.Errorf("decode base64 audio: %w", err)
	}
	if len(audio) < minAudioBytes {
		return fmt.Errorf("%w: %d bytes", ErrAudioCorrupt, len(audio))
	}
	// Unrecognized container signatures are permitted through: availability
	// over strictness.
	if format := SniffContainer(audio); format == "" {
		c.log.Info("unrecognized audio container, playing anyway",
			zap.Int("bytes", len(audio)))
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return c.play(ctx, audio, contentType)
}

func (c *Client) speakNative(ctx context.Context, text string, opts Options) error {
	// Native fallback uses fixed prosody regardless of requested options.
	voiceName := PickPreferredVoice(c.sink.NativeVoices())
	return c.sink.SpeakNative(ctx, text, voiceName, 0.95, 1.0, 1.0)
}

func (c *Client) fetch(ctx context.Context, path, text string, opts Options) ([]byte, error) {
	payload, err := json.Marshal(synthesizeRequest{
		Text:   text,
		Voice:  opts.Voice,
		Rate:   opts.Rate,
		Volume: opts.Volume,
		Pitch:  opts.Pitch,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis service %d: %s", resp.StatusCode, string(errBody))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) play(ctx context.Context, audio []byte, contentType string) error {
	playCtx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()
	return c.sink.PlayAudio(playCtx, audio, contentType)
}

// AsSpeaker adapts the client to the queue's Speaker contract with default
// options.
func (c *Client) AsSpeaker() voice.Speaker { return &speakerAdapter{c: c} }

type speakerAdapter struct{ c *Client }

func (s *speakerAdapter) Speak(ctx context.Context, text string) error {
	return s.c.Speak(ctx, text, Defaults())
}

func (s *speakerAdapter) Stop() { s.c.StopSpeaking() }
