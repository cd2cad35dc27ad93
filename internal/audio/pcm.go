package audio

import "encoding/binary"

// FloatsToPCM16LE quantizes normalized samples to signed 16-bit
// little-endian PCM, saturating at +32767/-32768.
func FloatsToPCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(int16(v)))
	}
	return out
}

// PCM16LEToFloats converts signed 16-bit little-endian PCM back to
// normalized float samples. A trailing odd byte is ignored.
func PCM16LEToFloats(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(v) / 32768
	}
	return out
}
