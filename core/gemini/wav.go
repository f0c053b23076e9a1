package gemini

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	defaultSampleRate    = 24000
	defaultBitsPerSample = 16
)

// isRawPCM reports whether the provider returned headerless samples.
func isRawPCM(mimeType string) bool {
	return strings.Contains(mimeType, "L16") || strings.Contains(strings.ToLower(mimeType), "pcm")
}

// parseAudioMimeType extracts bit depth and sample rate from e.g. "audio/L16;codec=pcm;rate=24000".
func parseAudioMimeType(mimeType string) (bitsPerSample, rate int) {
	bitsPerSample, rate = defaultBitsPerSample, defaultSampleRate
	for _, param := range strings.Split(mimeType, ";") {
		param = strings.TrimSpace(param)
		lower := strings.ToLower(param)
		switch {
		case strings.HasPrefix(lower, "rate="):
			if v, err := strconv.Atoi(param[len("rate="):]); err == nil && v > 0 {
				rate = v
			}
		case strings.HasPrefix(lower, "audio/l"):
			if v, err := strconv.Atoi(param[len("audio/l"):]); err == nil && v > 0 {
				bitsPerSample = v
			}
		}
	}
	return bitsPerSample, rate
}

// toWAV prepends a 44-byte mono PCM RIFF header to raw little-endian samples.
func toWAV(data []byte, mimeType string) []byte {
	bitsPerSample, rate := parseAudioMimeType(mimeType)
	const numChannels = 1
	blockAlign := numChannels * (bitsPerSample / 8)
	byteRate := rate * blockAlign
	dataSize := uint32(len(data))

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(data)
	return buf.Bytes()
}

// normalizeAudio wraps raw PCM in a WAV container and passes anything else through.
func normalizeAudio(data []byte, mimeType string) []byte {
	if isRawPCM(mimeType) {
		return toWAV(data, mimeType)
	}
	return data
}
