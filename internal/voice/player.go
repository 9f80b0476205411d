package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

// Player plays an already-fetched binary audio payload without going through
// text synthesis. At most one playback is tracked at a time; a new request
// implicitly stops whatever is currently playing.
type Player struct {
	sink Sink
	log  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPlayer(sink Sink, log *zap.Logger) *Player {
	return &Player{sink: sink, log: log}
}

// Play streams the payload through the sink and blocks until playback
// completes. The underlying resource is released on completion or error.
func (p *Player) Play(ctx context.Context, audio models.AudioPayload) error {
	if len(audio.Data) == 0 {
		return errors.New("empty audio payload")
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.sink.StopPlayback()
	}
	playCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.mu.Unlock()
	}()

	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	start := time.Now()
	if err := p.sink.PlayAudio(playCtx, audio.Data, contentType); err != nil {
		p.log.Warn("buffered audio playback failed",
			zap.Int("bytes", len(audio.Data)), zap.Error(err))
		return err
	}
	metrics.PlaybackObserved(time.Since(start))
	return nil
}

// Stop halts the current playback, if any. Idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()
	p.sink.StopPlayback()
}
