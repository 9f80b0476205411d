package synth

import (
	"bytes"
	"sort"
	"strings"

	"github.com/Ravindra162/prepAI-sub000/internal/voice"
)

// SniffContainer inspects the leading bytes of an audio payload and returns
// the container it recognizes: "wav", "mp3", "ogg" or "webm". It returns ""
// for anything it does not know; callers treat that as permitted, not
// rejected.
func SniffContainer(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "wav"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MP3 frame sync: eleven set bits.
		return "mp3"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// EBML header, used by WebM.
		return "webm"
	}
	return ""
}

// PickPreferredVoice chooses the client voice used for native fallback
// synthesis: a named natural-sounding English voice first, then any locally
// installed English voice, then any English voice, then whatever exists.
func PickPreferredVoice(voices []voice.NativeVoice) string {
	if len(voices) == 0 {
		return ""
	}

	english := make([]voice.NativeVoice, 0, len(voices))
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en") {
			english = append(english, v)
		}
	}
	// Stable preference regardless of client enumeration order.
	sort.SliceStable(english, func(i, j int) bool {
		return naturalRank(english[i]) < naturalRank(english[j])
	})
	if len(english) > 0 {
		return english[0].Name
	}
	return voices[0].Name
}

func naturalRank(v voice.NativeVoice) int {
	name := strings.ToLower(v.Name)
	switch {
	case strings.Contains(name, "natural"):
		return 0
	case v.Local:
		return 1
	default:
		return 2
	}
}
