package gemini

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAudioMimeType(t *testing.T) {
	bits, rate := parseAudioMimeType("audio/L16;codec=pcm;rate=24000")
	assert.Equal(t, 16, bits)
	assert.Equal(t, 24000, rate)

	bits, rate = parseAudioMimeType("audio/L24; rate=48000")
	assert.Equal(t, 24, bits)
	assert.Equal(t, 48000, rate)

	bits, rate = parseAudioMimeType("audio/pcm;rate=bogus")
	assert.Equal(t, 16, bits)
	assert.Equal(t, 24000, rate)
}

func TestToWAVHeader(t *testing.T) {
	data := make([]byte, 100)
	wav := toWAV(data, "audio/L16;rate=22050")
	require.Len(t, wav, 144)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(136), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(wav[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(22050), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestNormalizeAudioPassesThroughContainers(t *testing.T) {
	mp3 := []byte("ID3...")
	assert.Equal(t, mp3, normalizeAudio(mp3, "audio/mpeg"))
	assert.Len(t, normalizeAudio([]byte{0, 0}, "audio/L16"), 46)
	assert.Len(t, normalizeAudio([]byte{0, 0}, "audio/PCM"), 46)
}
