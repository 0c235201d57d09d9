package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/quantachat/internal/providers/stt"
	mongorepo "github.com/yoockh/quantachat/internal/repositories/mongo"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/voice"
)

const (
	DefaultStream = "voice:stream"
	DefaultGroup  = "voice-workers"

	maxFetchBytes = 10 << 20
)

func ResponseChannel(sessionID string) string { return "voice:" + sessionID + ":response" }
func StatusChannel(sessionID string) string   { return "voice:" + sessionID + ":status" }

// Publisher fans worker events out to whoever holds the session socket.
type Publisher interface {
	Publish(ctx context.Context, channel string, event any) error
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) Publish(ctx context.Context, channel string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, channel, b).Err()
}

type StatusEvent struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	ChunkIndex int64  `json:"chunk_index,omitempty"`
}

func Status(status, message string, chunkIndex int64) StatusEvent {
	return StatusEvent{Type: "status", Status: status, Message: message, ChunkIndex: chunkIndex}
}

type transcriptEvent struct {
	Type       string  `json:"type"`
	ChunkIndex int64   `json:"chunk_index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

type replyEvent struct {
	Type             string              `json:"type"`
	ChunkIndex       int64               `json:"chunk_index"`
	Reply            *services.ChatReply `json:"reply"`
	ProcessingTimeMS int64               `json:"processing_time_ms"`
}

// Job is one queued audio chunk.
type Job struct {
	UserID      string
	SessionID   string
	ChunkIndex  int64
	Language    string
	AudioBase64 string
	AudioURL    string
}

// Values encodes the job as stream fields.
func (j Job) Values() map[string]any {
	v := map[string]any{
		"user_id":     j.UserID,
		"session_id":  j.SessionID,
		"chunk_index": strconv.FormatInt(j.ChunkIndex, 10),
		"language":    j.Language,
		"ts_unix":     strconv.FormatInt(time.Now().UTC().Unix(), 10),
	}
	if j.AudioBase64 != "" {
		v["audio_base64"] = j.AudioBase64
	}
	if j.AudioURL != "" {
		v["audio_url"] = j.AudioURL
	}
	return v
}

func ParseJob(values map[string]any) (Job, error) {
	get := func(k string) string {
		s, _ := values[k].(string)
		return strings.TrimSpace(s)
	}

	j := Job{
		UserID:      get("user_id"),
		SessionID:   get("session_id"),
		Language:    normalizeLanguage(get("language")),
		AudioBase64: get("audio_base64"),
		AudioURL:    get("audio_url"),
	}
	idx, err := strconv.ParseInt(get("chunk_index"), 10, 64)
	if err != nil || idx <= 0 {
		return Job{}, errors.New("chunk_index must be a positive integer")
	}
	j.ChunkIndex = idx

	if j.UserID == "" || j.SessionID == "" {
		return Job{}, errors.New("user_id and session_id are required")
	}
	if j.AudioBase64 == "" && j.AudioURL == "" {
		return Job{}, errors.New("audio_base64 or audio_url is required")
	}
	return j, nil
}

func normalizeLanguage(v string) string {
	switch v {
	case "", "en", "en-US":
		return "en-US"
	case "id", "id-ID":
		return "id-ID"
	default:
		return v
	}
}

// VoiceWorkerPool consumes queued chunks from a Redis Streams consumer group,
// transcribes them and runs each transcript through the chat pipeline.
type VoiceWorkerPool struct {
	Redis      *redis.Client
	Publisher  Publisher
	Chunks     services.VoiceChunkService
	Chat       services.ChatService
	STT        stt.Provider
	NumWorkers int

	// AudioURLs gates audio_url downloads. HTTP defaults to a client that
	// only dials public addresses.
	AudioURLs AudioURLPolicy
	HTTP      *http.Client

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *VoiceWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.HTTP == nil {
		p.HTTP = newAudioClient(p.AudioURLs, 15*time.Second)
	}
	if p.Publisher == nil && p.Redis != nil {
		p.Publisher = NewRedisPublisher(p.Redis)
	}
}

func (p *VoiceWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Chunks == nil || p.Chat == nil || p.STT == nil {
		return errors.New("VoiceWorkerPool missing dependency: Redis/Chunks/Chat/STT must be set")
	}
	p.defaults()

	// BUSYGROUP just means another replica created it first
	if err := p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err(); err != nil &&
		!strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "workers": p.NumWorkers}).Info("voice workers started")
	return nil
}

func (p *VoiceWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				job, err := ParseJob(msg.Values)
				if err != nil {
					p.Logger.WithError(err).WithField("redis_id", msg.ID).Warn("dropping malformed voice job")
				} else {
					p.Handle(ctx, job)
				}
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

// Handle processes one job end to end, reporting progress on the session channels.
func (p *VoiceWorkerPool) Handle(ctx context.Context, job Job) {
	p.defaults()

	log := p.Logger.WithFields(logrus.Fields{
		"session_id":  job.SessionID,
		"chunk_index": job.ChunkIndex,
		"user_id":     job.UserID,
	})
	statusCh, respCh := StatusChannel(job.SessionID), ResponseChannel(job.SessionID)
	publish := func(ch string, ev any) {
		if err := p.Publisher.Publish(ctx, ch, ev); err != nil {
			log.WithError(err).Warn("publish failed")
		}
	}
	fail := func(msg string, err error) {
		log.WithError(err).Warn(msg)
		publish(statusCh, Status("failed", msg, job.ChunkIndex))
	}

	audio, err := p.fetchAudio(ctx, job)
	if err != nil {
		fail("failed to load audio", err)
		return
	}

	_ = p.Chunks.MarkTranscript(ctx, job.SessionID, job.ChunkIndex, "", 0, mongorepo.ChunkProcessing)
	publish(statusCh, Status("processing", "transcribing", job.ChunkIndex))

	// decodable audio is normalised to mono LINEAR16; anything else is
	// passed through for the recognizer to judge
	in := stt.Audio{PCM: audio}
	if pcm, err := voice.Decode(audio); err == nil {
		if linear16, err := voice.EncodeWAV(pcm); err == nil {
			in = stt.Audio{PCM: linear16, SampleRate: pcm.SampleRate}
		}
	}
	text, conf, err := p.STT.Transcribe(ctx, in, job.Language)
	if err != nil {
		_ = p.Chunks.MarkTranscript(ctx, job.SessionID, job.ChunkIndex, "", 0, mongorepo.ChunkFailed)
		fail("speech recognition failed", err)
		return
	}
	_ = p.Chunks.MarkTranscript(ctx, job.SessionID, job.ChunkIndex, text, conf, mongorepo.ChunkDone)
	publish(respCh, transcriptEvent{Type: "transcript", ChunkIndex: job.ChunkIndex, Text: text, Confidence: conf, IsFinal: true})

	if strings.TrimSpace(text) == "" {
		_ = p.Chunks.MarkReply(ctx, job.SessionID, job.ChunkIndex, "", mongorepo.ChunkDone, 0)
		publish(statusCh, Status("done", "no speech detected", job.ChunkIndex))
		return
	}

	start := time.Now()
	_ = p.Chunks.MarkReply(ctx, job.SessionID, job.ChunkIndex, "", mongorepo.ChunkProcessing, 0)
	publish(statusCh, Status("processing", "generating reply", job.ChunkIndex))

	reply, err := p.Chat.Process(ctx, job.UserID, text)
	ms := time.Since(start).Milliseconds()
	if err != nil {
		_ = p.Chunks.MarkReply(ctx, job.SessionID, job.ChunkIndex, "", mongorepo.ChunkFailed, ms)
		fail("reply generation failed", err)
		return
	}

	_ = p.Chunks.MarkReply(ctx, job.SessionID, job.ChunkIndex, reply.Content, mongorepo.ChunkDone, ms)
	publish(respCh, replyEvent{Type: "reply", ChunkIndex: job.ChunkIndex, Reply: reply, ProcessingTimeMS: ms})
	publish(statusCh, Status("done", "chunk processed", job.ChunkIndex))
}

func (p *VoiceWorkerPool) fetchAudio(ctx context.Context, job Job) ([]byte, error) {
	if job.AudioBase64 != "" {
		raw := job.AudioBase64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		return base64.StdEncoding.DecodeString(raw)
	}

	u, err := p.AudioURLs.Check(job.AudioURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio_url returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty audio")
	}
	return body, nil
}
