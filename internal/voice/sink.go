// Package voice serializes all spoken output for one interview session into a
// single ordered, non-overlapping playback stream.
package voice

import "context"

// NativeVoice describes one speech-synthesis voice advertised by the connected
// client.
type NativeVoice struct {
	Name  string `json:"name"`
	Lang  string `json:"lang"`
	Local bool   `json:"localService"`
}

// Sink is the session's audio output. PlayAudio and SpeakNative block until
// the client reports playback completion (or ctx expires). Implementations
// forward over the UI websocket; tests substitute fakes.
type Sink interface {
	// PlayAudio delivers a binary audio payload and waits for it to finish.
	PlayAudio(ctx context.Context, data []byte, contentType string) error

	// SpeakNative asks the client to synthesize text with its built-in
	// speech engine and waits for completion.
	SpeakNative(ctx context.Context, text, voiceName string, rate, pitch, volume float64) error

	// NativeVoices lists the voices the client advertised at connect time.
	NativeVoices() []NativeVoice

	// StopPlayback halts whatever is currently sounding, native or buffered.
	StopPlayback()
}

// Speaker resolves one utterance to audible output. Implemented by the
// synthesis client; the queue invokes it one item at a time.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}
