// Package server exposes the recommendation service over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/pkg/recommend"
)

const (
	infoMessage = "RAG-based Crop Recommendation API running"

	docsText = `RAG-based Crop Recommendation API

POST /recommend
  Body: {"nitrogen": float, "phosphorus": float, "potassium": float,
         "ph": float, "temperature": float, "humidity": float,
         "question": string (optional)}
  Numbers must be JSON numbers; quoted values such as "90" are rejected
  with 422. An absent or null question uses the default; "" is kept.
  Bodies over 1 MiB are rejected with 413.
  Returns the best crop and other candidates from the nearest stored rows.

GET /ws
  WebSocket. Send the /recommend body as a text frame; each reply is
  {"type": "recommendation", "data": ...} or {"type": "error", "content": ...}.

GET /health
  Liveness check.
`

	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Recommender answers a single soil query.
type Recommender interface {
	Recommend(ctx context.Context, q models.SoilQuery) (*recommend.Recommendation, error)
}

type Config struct {
	Addr        string
	CORSOrigin  string
	ServiceName string
}

// Message is a WebSocket frame.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type Server struct {
	config      Config
	recommender Recommender
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func New(config Config, recommender Recommender, logger *slog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8000"
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}
	if config.ServiceName == "" {
		config.ServiceName = "croprag"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:      config,
		recommender: recommender,
		logger:      logger.With("component", "server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /docs", s.handleDocs)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /recommend", s.handleRecommend)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return Chain(mux,
		RequestID(),
		Recover(s.logger),
		Logger(s.logger),
		CORS(s.config.CORSOrigin),
		OTel(s.config.ServiceName),
	)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":            infoMessage,
		"docs":               "/docs",
		"recommend_endpoint": "/recommend",
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, docsText)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "failed to read request body"})
		return
	}

	q, problems := decodeQuery(body)
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: problems})
		return
	}

	rec, err := s.recommender.Recommend(r.Context(), q)
	if err != nil {
		s.logger.Error("recommendation failed", "request_id", RequestIDFrom(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		// Replies are written from this goroutine only; gorilla connections
		// support one concurrent writer.
		if err := conn.WriteJSON(s.answer(r.Context(), payload)); err != nil {
			s.logger.Warn("websocket write failed", "err", err)
			return
		}
	}
}

func (s *Server) answer(ctx context.Context, payload []byte) Message {
	q, problems := decodeQuery(payload)
	if len(problems) > 0 {
		return Message{Type: "error", Content: problems[0].String()}
	}

	rec, err := s.recommender.Recommend(ctx, q)
	if err != nil {
		s.logger.Error("recommendation failed", "err", err)
		return Message{Type: "error", Content: err.Error()}
	}
	return Message{Type: "recommendation", Data: rec}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.config.CORSOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.config.CORSOrigin
}

type errorBody struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to write response", "err", err)
	}
}
