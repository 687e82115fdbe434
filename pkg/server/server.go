// Package server assembles the mentor HTTP surface: context sync, chat,
// the voice relay and operational endpoints, behind a shared middleware
// chain.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/voicecode-ai/mentor/pkg/server/config"
	"github.com/voicecode-ai/mentor/pkg/server/elevenlabs"
	"github.com/voicecode-ai/mentor/pkg/server/handlers"
	"github.com/voicecode-ai/mentor/pkg/server/metrics"
	"github.com/voicecode-ai/mentor/pkg/server/mw"
	"github.com/voicecode-ai/mentor/pkg/server/ratelimit"
	"github.com/voicecode-ai/mentor/pkg/server/session"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store   session.Store
	mentor  handlers.MentorService
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter
}

// New wires the handler graph. mentorSvc may be nil when no AI credentials
// are configured; chat then answers 503.
func New(cfg config.Config, logger *slog.Logger, store session.Store, mentorSvc handlers.MentorService, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		store:   store,
		mentor:  mentorSvc,
		metrics: m,
		limiter: ratelimit.New(ratelimit.Config{
			Requests: cfg.ChatRatePerMinute,
			Window:   time.Minute,
		}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /health", handlers.Health())
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	ctxHandler := &handlers.ContextHandler{
		Store:      s.store,
		Metrics:    s.metrics,
		Logger:     s.logger,
		SessionTTL: s.cfg.SessionTTL,
	}
	ctxHandler.Register(s.mux)

	s.mux.Handle("POST /api/chat", &handlers.ChatHandler{
		Store:   s.store,
		Mentor:  s.mentor,
		Limiter: s.limiter,
		Metrics: s.metrics,
		Logger:  s.logger,
	})

	voiceHandler := &handlers.VoiceHandler{
		Vendor: elevenlabs.Config{
			APIKey:  s.cfg.ElevenLabsAPIKey,
			AgentID: s.cfg.ElevenLabsAgentID,
		},
		Store:   s.store,
		Metrics: s.metrics,
		Logger:  s.logger,
	}
	voiceHandler.Register(s.mux)
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.MaxBytes(s.cfg.MaxBodyBytes, h)
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
