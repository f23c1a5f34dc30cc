package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

const rateLimitMessage = "rate limit exceeded"

// unmatchedRoute labels requests no route accepted (404 and 405).
const unmatchedRoute = "unmatched"

// statusRecorder captures the response code. It forwards Hijack so the
// stream endpoint can upgrade through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	route  string
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	// An upgraded connection reports 101 to the counters.
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, route: unmatchedRoute}
		next.ServeHTTP(rec, r)

		path := rec.route
		if s.counter != nil {
			s.counter.HTTPRequestInc(path, rec.status)
		}

		log.Debug().
			Str("request_id", w.Header().Get(RequestIDHeader)).
			Str("method", r.Method).
			Str("path", path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// labelRoute runs inside the router and reports the matched route template
// back to countRequests.
func (s *Server) labelRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := w.(*statusRecorder); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					rec.route = tmpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// allow reports whether one more prediction fits the configured rate.
func (s *Server) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// limited rejects requests beyond the configured rate with 429.
func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allow() {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: rateLimitMessage})
			return
		}
		h(w, r)
	}
}
