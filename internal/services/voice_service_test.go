package services

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/quantachat/internal/cache"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/providers/stt"
	"github.com/yoockh/quantachat/internal/storage"
	"github.com/yoockh/quantachat/internal/utils"
	"github.com/yoockh/quantachat/internal/voice"
)

type fakeSTT struct {
	text string
	err  error
	got  stt.Audio
}

func (f *fakeSTT) Transcribe(_ context.Context, a stt.Audio, _ string) (string, float64, error) {
	f.got = a
	return f.text, 0.9, f.err
}

func (f *fakeSTT) Close() error { return nil }

type fakeUploader struct {
	name string
	size int
}

func (f *fakeUploader) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	f.name, f.size = objectName, len(b)
	return "gs://bucket/" + objectName, err
}

type signingUploader struct {
	fakeUploader
	ttl time.Duration
}

func (s *signingUploader) SignedGetURL(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	s.ttl = ttl
	return "https://storage.example/" + objectName + "?sig=1", nil
}

func toneWAV(t *testing.T, freq, amp float64) []byte {
	t.Helper()
	const rate = 16000
	s := make([]float64, rate)
	for i := range s {
		s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	b, err := voice.EncodeWAV(&voice.PCM{SampleRate: rate, Samples: s})
	require.NoError(t, err)
	return b
}

func newVoiceFixture(t *testing.T, speech stt.Provider, up storage.Uploader) (VoiceService, *fakeHeatmapRepo) {
	t.Helper()
	scorer, err := heatmap.NewScorer(heatmap.DefaultConfig())
	require.NoError(t, err)
	log, _ := logtest.NewNullLogger()

	clock := &stepClock{t: time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)}
	repo := newFakeHeatmapRepo()
	hm := NewHeatmapService(repo, nil, cache.NewLocalLocker(), scorer, heatmap.NewAggregator(0),
		heatmap.LengthEstimator{}, log, HeatmapOptions{Now: clock.Now})

	deps := VoiceDeps{
		Users:   newFakeUserRepo(testUser("u1", models.TierFree, false)),
		Heatmap: hm,
		STT:     speech,
		Log:     log,
		Now:     clock.Now,
	}
	if up != nil {
		deps.Archive = up
	}
	return NewVoiceService(deps), repo
}

func TestVoice_ProcessExcitedTone(t *testing.T) {
	speech := &fakeSTT{text: "book a table for two"}
	up := &fakeUploader{}
	svc, repo := newVoiceFixture(t, speech, up)

	data := toneWAV(t, 220, 0.6)
	res, err := svc.Process(context.Background(), "u1", VoiceUpload{Filename: "clip.WAV", ContentType: "audio/wav", Data: data})
	require.NoError(t, err)

	assert.Equal(t, "You sound excited! What else can I do for you?", res.TextResponse)
	assert.True(t, res.EmotionAdapted)
	require.NotNil(t, res.VoiceAnalysis.Text)
	assert.Equal(t, "book a table for two", *res.VoiceAnalysis.Text)
	assert.Equal(t, 16000, speech.got.SampleRate)

	assert.Equal(t, "voice/u1/2026/10/15/", up.name[:len("voice/u1/2026/10/15/")])
	assert.Equal(t, ".wav", up.name[len(up.name)-4:])
	assert.Equal(t, len(data), up.size)
	assert.Equal(t, "gs://bucket/"+up.name, res.VoiceAnalysis.AudioURL)

	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	assert.InDelta(t, res.VoiceAnalysis.Emotion.Valence*2-1, rec.SentimentScore, 1e-9)
	assert.Equal(t, len("book a table for two"), rec.MessageLength)
}

func TestVoice_LowPitchSoundsFrustrated(t *testing.T) {
	svc, _ := newVoiceFixture(t, nil, nil)

	res, err := svc.Process(context.Background(), "u1", VoiceUpload{ContentType: "audio/x-wav", Data: toneWAV(t, 100, 0.3)})
	require.NoError(t, err)
	assert.Equal(t, "I hear some frustration in your voice. Let me help.", res.TextResponse)
	assert.Nil(t, res.VoiceAnalysis.Text)
	assert.Empty(t, res.VoiceAnalysis.AudioURL)
}

// memWriteSeeker backs the wav encoder in tests.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		offset += int64(m.pos)
	case io.SeekEnd:
		offset += int64(len(m.buf))
	}
	m.pos = int(offset)
	return offset, nil
}

func TestVoice_StereoUploadIsNormalisedForSpeech(t *testing.T) {
	const rate = 44100
	data := make([]int, 0, 2*rate)
	for i := 0; i < rate; i++ {
		v := int(0.5 * (1 << 23) * math.Sin(2*math.Pi*220*float64(i)/rate))
		data = append(data, v, v)
	}
	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, rate, 24, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 24,
	}))
	require.NoError(t, enc.Close())

	speech := &fakeSTT{text: "hello"}
	svc, _ := newVoiceFixture(t, speech, nil)
	res, err := svc.Process(context.Background(), "u1", VoiceUpload{ContentType: "audio/wav", Data: out.buf})
	require.NoError(t, err)
	require.NotNil(t, res.VoiceAnalysis.Text)

	assert.Equal(t, rate, speech.got.SampleRate)
	pcm, err := voice.DecodeWAV(speech.got.PCM)
	require.NoError(t, err)
	assert.Len(t, pcm.Samples, rate)
	// mono 16-bit: 44-byte header plus two bytes per sample
	assert.Len(t, speech.got.PCM, 44+2*rate)
}

func TestVoice_STTFailureIsNotFatal(t *testing.T) {
	svc, repo := newVoiceFixture(t, &fakeSTT{err: errors.New("deadline exceeded")}, nil)

	res, err := svc.Process(context.Background(), "u1", VoiceUpload{ContentType: "audio/wav", Data: toneWAV(t, 220, 0.6)})
	require.NoError(t, err)
	assert.Nil(t, res.VoiceAnalysis.Text)
	assert.Len(t, repo.records, 1)
}

func TestVoice_Rejects(t *testing.T) {
	svc, repo := newVoiceFixture(t, nil, nil)
	ctx := context.Background()

	_, err := svc.Process(ctx, "u1", VoiceUpload{ContentType: "image/png", Data: []byte{1, 2, 3}})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Process(ctx, "u1", VoiceUpload{ContentType: "audio/mpeg", Data: []byte("ID3 not a wav")})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Process(ctx, "u1", VoiceUpload{ContentType: "audio/wav"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	assert.Empty(t, repo.records)
}

func TestVoice_ArchiveReturnsSignedURL(t *testing.T) {
	up := &signingUploader{}
	svc, _ := newVoiceFixture(t, nil, up)

	res, err := svc.Process(context.Background(), "u1", VoiceUpload{Filename: "a.wav", ContentType: "audio/wav", Data: toneWAV(t, 220, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/"+up.name+"?sig=1", res.VoiceAnalysis.AudioURL)
	assert.Equal(t, time.Hour, up.ttl)
}
