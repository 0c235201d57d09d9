package voice

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var ErrUnsupportedAudio = errors.New("unsupported audio: expected PCM WAV or MP3")

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// PCM is a decoded mono signal with samples in [-1,1].
type PCM struct {
	SampleRate int
	Samples    []float64
}

// Decode sniffs the container and returns the signal downmixed to mono.
func Decode(b []byte) (*PCM, error) {
	switch {
	case len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE":
		return DecodeWAV(b)
	case isMP3(b):
		return DecodeMP3(b)
	default:
		return nil, ErrUnsupportedAudio
	}
}

func isMP3(b []byte) bool {
	if bytes.HasPrefix(b, []byte("ID3")) {
		return true
	}
	// MPEG audio frame sync: 11 set bits
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

// DecodeWAV reads integer PCM at 8, 16, 24 or 32 bits. Multi-channel audio is
// averaged down to mono.
func DecodeWAV(b []byte) (*PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(b))
	if !d.IsValidFile() {
		return nil, ErrUnsupportedAudio
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: wav format %d", ErrUnsupportedAudio, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudio, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format", ErrUnsupportedAudio)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	var offset int
	switch depth {
	case 8:
		// 8-bit WAV is unsigned
		offset = 128
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedAudio, depth)
	}
	scale := float64(int64(1) << (depth - 1))

	return &PCM{
		SampleRate: buf.Format.SampleRate,
		Samples:    downmix(buf.Data, buf.Format.NumChannels, func(v int) float64 { return float64(v-offset) / scale }),
	}, nil
}

// DecodeMP3 decodes an MPEG-1/2 layer III stream.
func DecodeMP3(b []byte) (*PCM, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudio, err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudio, err)
	}

	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: no mp3 frames", ErrUnsupportedAudio)
	}

	// the decoder always emits 16-bit little-endian stereo
	ints := make([]int, len(raw)/2)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	return &PCM{
		SampleRate: d.SampleRate(),
		Samples:    downmix(ints, 2, func(v int) float64 { return float64(v) / 32768 }),
	}, nil
}

func downmix(data []int, channels int, norm func(int) float64) []float64 {
	n := len(data) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += norm(data[i*channels+ch])
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// EncodeWAV writes mono 16-bit PCM, the LINEAR16 layout speech recognition
// expects.
func EncodeWAV(p *PCM) ([]byte, error) {
	if p == nil || p.SampleRate <= 0 {
		return nil, errors.New("encode wav: sample rate is required")
	}

	data := make([]int, len(p.Samples))
	for i, s := range p.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, p.SampleRate, 16, 1, wavFormatPCM)
	err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: p.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker; the encoder seeks back to patch
// chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, errors.New("memFile: invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("memFile: negative position")
	}
	m.pos = int(next)
	return next, nil
}
