// Package server exposes the detection pipeline over HTTP.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/wsdpi/internal/engine"
	"github.com/danmuck/wsdpi/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	engine *engine.Engine
	router *gin.Engine
	log    zerolog.Logger
}

func New(id, addr string, corsOrigins []string, eng *engine.Engine, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		engine:   eng,
		router:   r,
		log:      logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.log.Info().Str("addr", s.Addr).Str("id", s.ID).Msg("serving")
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
