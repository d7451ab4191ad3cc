// Package server is the HTTP dispatch layer. It authenticates the caller
// from the X-Sender header supplied by the fronting host, verifies attached
// funds for native operations, serializes operations onto the engine, and
// publishes the resulting effect instructions.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"MintVault/internal/effect"
	"MintVault/internal/engine"
	"MintVault/internal/observability"
)

// SenderHeader carries the authenticated caller identity. The fronting host
// verifies signatures; by the time a request reaches this service the
// header is trusted.
const SenderHeader = "X-Sender"

// Server dispatches HTTP requests onto the engine.
type Server struct {
	engine    *engine.Engine
	publisher EffectPublisher
	health    *observability.HealthChecker
	log       zerolog.Logger
	metrics   *observability.Metrics

	// Operations run one at a time; the engine performs its checks and
	// writes assuming exclusive access.
	mu sync.Mutex
}

// EffectPublisher delivers effect instructions to downstream executors.
type EffectPublisher interface {
	Publish(instructions []effect.Instruction)
}

// New assembles a Server.
func New(eng *engine.Engine, publisher EffectPublisher, health *observability.HealthChecker, metrics *observability.Metrics) *Server {
	return &Server{
		engine:    eng,
		publisher: publisher,
		health:    health,
		log:       observability.NewLogger("server"),
		metrics:   metrics,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.instrument)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/positions", s.handleOpenPosition)
		r.Post("/positions/{idx}/deposit", s.handleDeposit)
		r.Post("/positions/{idx}/withdraw", s.handleWithdraw)
		r.Post("/positions/{idx}/mint", s.handleMint)
		r.Post("/token/receive", s.handleTokenReceive)

		r.Get("/positions/next-idx", s.handleNextPositionIdx)
		r.Get("/positions/{idx}", s.handleGetPosition)
		r.Get("/positions", s.handleListPositions)
		r.Get("/config", s.handleGetConfig)
		r.Get("/assets/{token}", s.handleGetAsset)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireOwner)
			r.Post("/config", s.handleUpdateConfig)
			r.Post("/assets", s.handleRegisterAsset)
			r.Post("/assets/{token}", s.handleUpdateAsset)
			r.Post("/assets/{token}/migrate", s.handleRegisterMigration)
		})
	})

	return r
}

// instrument records request metrics per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requireOwner gates admin routes on sender == config.owner.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sender := r.Header.Get(SenderHeader)
		if sender == "" {
			s.writeError(w, engine.ErrUnauthorized)
			return
		}
		cfg, err := s.engine.Config(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if sender != cfg.Owner {
			s.writeError(w, engine.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sender(w http.ResponseWriter, r *http.Request) (string, bool) {
	sender := r.Header.Get(SenderHeader)
	if sender == "" {
		s.writeError(w, engine.ErrUnauthorized)
		return "", false
	}
	return sender, true
}

func pathIdx(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "idx"), 10, 64)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

// respond finishes a successful operation: effects are published
// best-effort after the state change is durable, then the result is
// returned to the caller.
func (s *Server) respond(w http.ResponseWriter, res *engine.Result) {
	if s.publisher != nil && len(res.Effects) > 0 {
		s.publisher.Publish(res.Effects)
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Attributes: res.Attributes,
		Effects:    encodeEffects(res.Effects),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
