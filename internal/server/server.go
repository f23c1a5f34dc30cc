// Package server exposes the churn predictor over HTTP: an HTML form for
// interactive use, a JSON API, a WebSocket stream for bulk scoring, and the
// operational health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"churn-predictor/internal/ml"
)

const (
	IndexPath   = "/"
	FormPath    = "/predict"
	PredictPath = "/api/v1/predict"
	ModelPath   = "/api/v1/model"
	StreamPath  = "/api/v1/stream"
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// RequestCounter receives one call per served request.
type RequestCounter interface {
	HTTPRequestInc(path string, code int)
}

// Config holds the HTTP settings the server needs.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64

	// RateLimit is the sustained number of prediction requests per second
	// accepted across all clients. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server serves predictions from a loaded model.
type Server struct {
	predictor ml.PredictorInterface
	counter   RequestCounter
	classes   []int
	cfg       Config
	limiter   *rate.Limiter
	upgrader  websocket.Upgrader
	handler   http.Handler
	server    *http.Server

	streamsMu sync.Mutex
	streams   map[*websocket.Conn]struct{}
	closing   bool
}

// New builds a server around predictor. counter may be nil.
func New(predictor ml.PredictorInterface, cfg Config, counter RequestCounter) *Server {
	s := &Server{
		predictor: predictor,
		counter:   counter,
		classes:   predictor.Info().Classes,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		streams: make(map[*websocket.Conn]struct{}),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	r := mux.NewRouter()
	r.Use(s.labelRoute)
	r.HandleFunc(IndexPath, s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc(FormPath, s.limited(s.handleFormPredict)).Methods(http.MethodPost)
	r.HandleFunc(PredictPath, s.limited(s.handleAPIPredict)).Methods(http.MethodPost)
	r.HandleFunc(ModelPath, s.handleModelInfo).Methods(http.MethodGet)
	r.HandleFunc(StreamPath, s.handleStream).Methods(http.MethodGet)
	r.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle(MetricsPath, cfg.Metrics).Methods(http.MethodGet)
	}
	// Wrapped outside the router so 404 and 405 replies are tagged and counted.
	s.handler = s.requestID(s.countRequests(r))

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	// Hijacked stream connections are not tracked by http.Server.
	s.server.RegisterOnShutdown(s.closeStreams)

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight requests until
// ctx expires. Open streams are closed immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
