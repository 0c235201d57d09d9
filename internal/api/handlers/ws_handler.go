package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/utils"
	"github.com/yoockh/quantachat/internal/workers"
)

type WSHandler struct {
	sessions services.VoiceSessionService
	chunks   services.VoiceChunkService
	redis    *redis.Client
	pub      workers.Publisher
	stream   string
	urls     workers.AudioURLPolicy
	upgrader websocket.Upgrader
}

// NewWSHandler accepts upgrades only from allowedOrigins; "*" allows any.
// Chunks may reference audio_url only on a host listed in urls.
func NewWSHandler(sessions services.VoiceSessionService, chunks services.VoiceChunkService, rdb *redis.Client, stream string, allowedOrigins []string, urls workers.AudioURLPolicy) *WSHandler {
	if stream == "" {
		stream = workers.DefaultStream
	}
	return &WSHandler{
		sessions: sessions,
		chunks:   chunks,
		redis:    rdb,
		pub:      workers.NewRedisPublisher(rdb),
		stream:   stream,
		urls:     urls,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := map[string]bool{}
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no Origin
		return origin == "" || set["*"] || set[origin]
	}
}

type wsClientMsg struct {
	Type        string `json:"type"`
	ChunkIndex  int64  `json:"chunk_index"`
	AudioBase64 string `json:"audio_base64"`
	AudioURL    string `json:"audio_url"`
}

type wsErrorMsg struct {
	Type    string     `json:"type"`
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeErr(code utils.Code, msg string) {
	_ = w.writeJSON(wsErrorMsg{Type: "error", Code: code, Message: msg})
}

func (h *WSHandler) VoiceWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.VoiceWS", "missing session_id", nil))
		return
	}

	// ownership is enforced by the service
	sess, err := h.sessions.Get(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.Status == models.VoiceSessionEnded {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.VoiceWS", "session has ended", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	statusCh := workers.StatusChannel(sessionID)
	pubsub := h.redis.Subscribe(ctx, workers.ResponseChannel(sessionID), statusCh)
	defer pubsub.Close()

	paused := sess.Status == models.VoiceSessionPaused
	status := func(s, msg string, idx int64) {
		_ = h.pub.Publish(ctx, statusCh, workers.Status(s, msg, idx))
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				wc.writeErr(utils.CodeInvalidArgument, "invalid json")
				continue
			}

			switch msg.Type {
			case "audio_chunk":
				if paused {
					wc.writeErr(utils.CodeInvalidArgument, "session is paused")
					continue
				}
				var audioBase64Ptr, audioURLPtr *string
				if msg.AudioBase64 != "" {
					audioBase64Ptr = &msg.AudioBase64
				}
				if msg.AudioURL != "" {
					if _, err := h.urls.Check(msg.AudioURL); err != nil {
						wc.writeErr(utils.CodeInvalidArgument, "audio_url is not allowed")
						continue
					}
					audioURLPtr = &msg.AudioURL
				}

				if _, err := h.chunks.InsertAudioChunk(ctx, sessionID, msg.ChunkIndex, audioURLPtr, audioBase64Ptr); err != nil {
					wc.writeErr(publicError(err))
					continue
				}

				job := workers.Job{
					UserID:      userID,
					SessionID:   sessionID,
					ChunkIndex:  msg.ChunkIndex,
					Language:    sess.Language,
					AudioBase64: msg.AudioBase64,
					AudioURL:    msg.AudioURL,
				}
				if err := h.redis.XAdd(ctx, &redis.XAddArgs{Stream: h.stream, Values: job.Values()}).Err(); err != nil {
					wc.writeErr(utils.CodeUnavailable, "failed to enqueue audio")
					continue
				}
				status("processing", "audio chunk queued", msg.ChunkIndex)

			case "pause":
				paused = true
				_ = h.sessions.SetStatus(ctx, sessionID, models.VoiceSessionPaused)
				status(models.VoiceSessionPaused, "paused", 0)

			case "resume":
				paused = false
				_ = h.sessions.SetStatus(ctx, sessionID, models.VoiceSessionActive)
				status("ready", "resumed", 0)

			case "end_session":
				_, _ = h.sessions.End(ctx, userID, sessionID)
				status(models.VoiceSessionEnded, "session ended", 0)
				return

			default:
				wc.writeErr(utils.CodeInvalidArgument, "unknown message type")
			}
		}
	}()

	msgs := pubsub.Channel()
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
