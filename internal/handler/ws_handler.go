package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	ws "github.com/quizforge/quizforge-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// tickInterval paces the countdown events of a timed session.
const tickInterval = time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
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

// WSHandler streams a live exam session: answers and submit go up, the
// countdown and the graded result come down.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// QuizStream godoc
// WS /ws/v1/student/quizzes/:quiz_id/stream?token=
// The session must have been started over REST first.
func (h *WSHandler) QuizStream(c *gin.Context) {
	claims, quizID, ok := sessionParams(c)
	if !ok {
		return
	}

	// Resolve the session before upgrading so failures are plain HTTP errors.
	sess, err := h.sessionService.Get(c.Request.Context(), claims.UserID, quizID)
	if err != nil {
		fail(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("quiz_id", quizID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: h.sessionService.View(sess)}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.pump(ctx, conn, sess, wsLog)

	for {
		var msg ws.RequestEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, sess, msg.Payload)
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, sess, wsLog)
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError("UNKNOWN_ACTION", "unknown action: "+string(msg.Action))
		}
	}
}

// pump sends a tick every second on timed sessions and the graded result as
// soon as the session completes, however it was submitted.
func (h *WSHandler) pump(ctx context.Context, conn *ws.Conn, sess *examsession.Session, wsLog zerolog.Logger) {
	var tick <-chan time.Time
	if sess.Quiz().TimeLimit > 0 {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			res, ok := sess.Result()
			if !ok {
				_ = conn.WriteError(string(response.ErrAttemptRejected), response.GetMessage(response.ErrAttemptRejected))
				_ = conn.Close()
				return
			}
			if err := conn.WriteTyped(ws.GradedResponse{Event: ws.EventGraded, Result: res}); err != nil {
				wsLog.Debug().Err(err).Msg("Sending result failed")
			}
			wsLog.Info().
				Int("score", res.Score).
				Str("reason", string(res.Reason)).
				Msg("Exam graded")
			_ = conn.Close()
			return
		case <-tick:
			if sess.State() != model.SessionStateActive {
				continue
			}
			if err := conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, Remaining: sess.Remaining()}); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, sess *examsession.Session, payload json.RawMessage) {
	var p ws.AnswerPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Position == nil || p.Option == nil {
		_ = conn.WriteError(string(response.ErrInvalidPayload), "position and option are required")
		return
	}

	if err := sess.RecordAnswer(*p.Position, *p.Option); err != nil {
		_, code := classify(err)
		_ = conn.WriteError(string(code), err.Error())
		return
	}
	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, Position: *p.Position, Option: *p.Option})
}

// handleSubmit leaves the graded event to pump.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, sess *examsession.Session, wsLog zerolog.Logger) {
	if _, err := sess.Submit(ctx, model.SubmitReasonManual); err != nil {
		wsLog.Warn().Err(err).Msg("Submit failed")
		_, code := classify(err)
		_ = conn.WriteError(string(code), err.Error())
	}
}
