package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"aaron-services/internal/adapter/websocket"
	"aaron-services/internal/common/middleware"
	"aaron-services/internal/config"

	"go.uber.org/zap"
)

type Server struct {
	router   *http.ServeMux
	cfg      *config.Config
	tracking *TrackingHandler
	dispatch *DispatchHandler
	gateway  *websocket.Gateway
	authMW   *middleware.AuthMiddleware
	log      *zap.SugaredLogger
	server   *http.Server
}

func NewServer(cfg *config.Config, tracking *TrackingHandler, dispatch *DispatchHandler, gateway *websocket.Gateway, authMW *middleware.AuthMiddleware, log *zap.SugaredLogger) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		cfg:      cfg,
		tracking: tracking,
		dispatch: dispatch,
		gateway:  gateway,
		authMW:   authMW,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	s.router.Handle("POST /track/ping", s.authMW.Wrap(http.HandlerFunc(s.tracking.SavePing)))
	s.router.Handle("GET /track/route", s.authMW.Wrap(http.HandlerFunc(s.tracking.GetRoute)))
	s.router.Handle("GET /track/summary", s.authMW.Wrap(http.HandlerFunc(s.tracking.ListSummaries)))

	s.router.Handle("POST /crews", s.authMW.Wrap(http.HandlerFunc(s.dispatch.CreateCrew)))
	s.router.Handle("GET /crews/{crew_id}", s.authMW.Wrap(http.HandlerFunc(s.dispatch.GetCrew)))

	s.router.Handle("POST /orders", s.authMW.Wrap(http.HandlerFunc(s.dispatch.CreateOrder)))
	s.router.Handle("GET /orders/{order_id}", s.authMW.Wrap(http.HandlerFunc(s.dispatch.GetOrder)))
	s.router.Handle("POST /orders/{order_id}/assign", s.authMW.Wrap(http.HandlerFunc(s.dispatch.AssignCrew)))
	s.router.Handle("POST /orders/{order_id}/status", s.authMW.Wrap(http.HandlerFunc(s.dispatch.ChangeState)))
	s.router.Handle("POST /orders/{order_id}/location", s.authMW.Wrap(http.HandlerFunc(s.dispatch.RecordLocation)))
	s.router.Handle("GET /orders/{order_id}/timeline", s.authMW.Wrap(http.HandlerFunc(s.dispatch.GetTimeline)))

	// The gateway authenticates the handshake itself: bad tokens get a
	// silent close, not an HTTP error.
	s.router.HandleFunc("GET /ws", s.gateway.ServeWS)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Infow("starting HTTP server", "addr", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
