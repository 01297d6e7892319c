package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	core_ports "market-sync-service/internal/core/port"
)

type Server struct {
	httpServer *http.Server
	logger     core_ports.LoggerPort
}

func NewServer(port string, adminToken string, handlers *SyncHandlers, baseLogger core_ports.LoggerPort) *Server {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware(baseLogger)) // Логирует каждый запрос (метод, путь, время выполнения)
	r.Use(middleware.Recoverer)         // Перехватывает паники и возвращает 500, чтобы сервер не упал

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Use(NewAuthMiddleware(adminToken))

			r.Post("/", handlers.HandleStartSync)
			r.Get("/status", handlers.HandleSyncStatus)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: r,
		},
		logger: baseLogger,
	}
}

// Start запускает HTTP-сервер
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", core_ports.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
