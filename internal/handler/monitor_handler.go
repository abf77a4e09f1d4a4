package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/response"
	"github.com/hakraj/exboard/internal/service"
	ws "github.com/hakraj/exboard/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live exam-taking events to admin WebSocket clients.
type MonitorHandler struct {
	rdb         *redis.Client
	examService *service.ExamService
	log         zerolog.Logger
	upgrader    gorillaws.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		examService: examService,
		log:         log.With().Str("component", "monitor_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// MonitorExam godoc
// WS /ws/v1/admin/exams/:exam_id/monitor
// Upgrades to WebSocket and relays this exam's attempt events from Redis
// Pub/Sub until the client disconnects.
func (h *MonitorHandler) MonitorExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.examService.GetByID(c.Request.Context(), examID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	reqCtx := c.Request.Context()

	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	if err := ws.WriteTyped(conn, ws.MonitorEvent{
		Type:      "monitor_attached",
		ExamID:    examID.String(),
		Timestamp: time.Now(),
	}); err != nil {
		return
	}

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor")

	// Drain client reads so close frames and pongs are processed. Pongs
	// answering the keepalive pings refresh the read deadline, so an
	// idle admin stays attached as long as the connection is live.
	ws.ExtendReadDeadlineOnPong(conn)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var discard json.RawMessage
			if err := ws.ReadJSON(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor")
			return

		case <-done:
			h.log.Info().Str("exam_id", examID.String()).Msg("Monitor client closed connection")
			return

		case msg, ok := <-ch:
			if !ok {
				ws.WriteError(conn, "event stream closed")
				return
			}
			// Forward the raw JSON published by the attempt service.
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(gorillaws.TextMessage, []byte(msg.Payload)); err != nil {
				h.log.Debug().Err(err).Msg("Monitor write failed, dropping client")
				return
			}

		case <-keepAliveTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
