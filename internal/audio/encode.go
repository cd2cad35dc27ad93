package audio

import (
	"encoding/base64"
	"fmt"
)

// FormatPCM16 is the format tag carried on every encoded utterance.
const FormatPCM16 = "pcm_s16le"

// Encoded is a transport-ready utterance: base64 PCM16LE plus the
// metadata the server needs to decode it.
type Encoded struct {
	Data       string
	Format     string
	SampleRate int
}

// EncodeUtterance concatenates the frames, normalizes by the utterance's
// own peak absolute amplitude (a running/global peak is never used, so
// each utterance is independently normalized), quantizes to PCM16LE and
// base64-encodes the result. Normalization is skipped when the peak is
// zero. Returns ok=false for an utterance with no samples.
func EncodeUtterance(frames []Frame, sampleRate int) (Encoded, bool) {
	var total int
	for _, f := range frames {
		total += len(f.Samples)
	}
	if total == 0 {
		return Encoded{}, false
	}
	buf := make([]float32, 0, total)
	for _, f := range frames {
		buf = append(buf, f.Samples...)
	}
	var peak float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak > 0 {
		for i := range buf {
			buf[i] /= peak
		}
	}
	pcm := FloatsToPCM16LE(buf)
	return Encoded{
		Data:       base64.StdEncoding.EncodeToString(pcm),
		Format:     FormatPCM16,
		SampleRate: sampleRate,
	}, true
}

// DecodePCM16Base64 decodes a base64 payload as received on the audio
// message channel. The bytes are raw PCM16LE, so an odd byte count is
// rejected.
func DecodePCM16Base64(data string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has odd length %d", len(pcm))
	}
	return pcm, nil
}
