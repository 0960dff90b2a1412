package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/apryandito/taskrelay/internal/bot"
	"github.com/apryandito/taskrelay/internal/config"
	"github.com/apryandito/taskrelay/internal/notify"
	"github.com/apryandito/taskrelay/internal/observability"
	"github.com/apryandito/taskrelay/internal/protocol"
)

const maxUpdateBody = 1 << 20

// Server exposes the inbound transport shell: the platform webhook, a
// websocket console for local development, health probes and metrics. All
// chat semantics live in the bot engine.
type Server struct {
	cfg        config.Config
	engine     *bot.Engine
	dispatcher notify.Dispatcher
	metrics    *observability.Metrics
	storeMode  string
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, engine *bot.Engine, dispatcher notify.Dispatcher, metrics *observability.Metrics, storeMode string) *Server {
	return &Server{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		metrics:    metrics,
		storeMode:  storeMode,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser connections from the same origin unless
				// explicitly opened up; non-browser clients omit Origin.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/webhook", s.handleWebhook)
	r.Get("/ws", s.handleConsoleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode,
	})
}

// handleWebhook receives one platform update, runs it through the engine and
// sends the reply via the dispatcher. The platform retries non-2xx responses,
// so anything after a syntactically valid payload is acknowledged with 200.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read_failed", err.Error())
		return
	}

	upd, err := protocol.ParseUpdate(body)
	if errors.Is(err, protocol.ErrNoMessage) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_update", err.Error())
		return
	}

	from := bot.Principal{ID: upd.Message.From.ID, Username: upd.Message.From.Username}
	reply := s.engine.HandleMessage(r.Context(), from, upd.Message.Text)
	if reply != "" {
		// Replies go to the chat the message came from.
		target := from.ID
		if upd.Message.Chat != nil && upd.Message.Chat.ID != 0 {
			target = upd.Message.Chat.ID
		}
		if err := s.dispatcher.Send(r.Context(), target, reply); err != nil {
			log.Printf("httpapi: reply to %d failed: %v", target, err)
			if s.metrics != nil {
				s.metrics.NotifyErrors.WithLabelValues("reply").Inc()
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleConsoleWS is a development chat console: chat_message frames in,
// chat_reply frames out, no platform round-trip.
func (s *Server) handleConsoleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeFrame(conn, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}

		from := bot.Principal{ID: msg.UserID, Username: msg.Username}
		reply := s.engine.HandleMessage(ctx, from, msg.Text)
		s.writeFrame(conn, protocol.ChatReply{Type: protocol.TypeChatReply, Text: reply})
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("httpapi: ws write failed: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
