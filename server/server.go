package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pilot-bridge/flightlog"
	"pilot-bridge/pilotingitf"
	"pilot-bridge/updater"
)

var logger = log.New(os.Stdout, "[HTTP-Server] ", log.LstdFlags|log.Lshortfile)

// Config представляет конфигурацию HTTP сервера
type Config struct {
	Addr            string        `mapstructure:"addr"`             // Адрес прослушивания
	StreamBuffer    int           `mapstructure:"stream_buffer"`    // Буфер снимков на одно websocket соединение
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Время на завершение активных запросов
	UploadDir       string        `mapstructure:"upload_dir"`       // Каталог временных файлов прошивки
	UploadRetention time.Duration `mapstructure:"upload_retention"` // Сколько хранить статус завершенной загрузки
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		StreamBuffer:    32,
		ShutdownTimeout: 5 * time.Second,
		UploadRetention: 10 * time.Minute,
	}
}

// Options: необязательные зависимости сервера
type Options struct {
	Flights flightlog.Store // nil отключает /api/v1/flights
	Updater *updater.Client // nil отключает /api/v1/updates
}

// Server: HTTP и websocket доступ к интерфейсам пилотирования
type Server struct {
	config     Config
	session    *pilotingitf.Session
	flights    flightlog.Store
	updates    *updater.Client
	upgrader   websocket.Upgrader
	httpServer *http.Server

	uploadsMu sync.Mutex
	uploads   map[uuid.UUID]*updater.Request
}

// New создает сервер поверх сессии
func New(config Config, session *pilotingitf.Session, opts Options) *Server {
	if config.StreamBuffer <= 0 {
		config.StreamBuffer = DefaultConfig().StreamBuffer
	}
	if config.UploadRetention <= 0 {
		config.UploadRetention = DefaultConfig().UploadRetention
	}
	return &Server{
		config:  config,
		session: session,
		flights: opts.Flights,
		updates: opts.Updater,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		uploads: make(map[uuid.UUID]*updater.Request),
	}
}

// Router возвращает обработчик со всеми маршрутами
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pilotingitf", s.listSnapshots)
		r.Get("/pilotingitf/{kind}", s.getSnapshot)
		r.Post("/pilotingitf/{kind}/activate", s.activate)
		r.Post("/pilotingitf/{kind}/deactivate", s.deactivate)

		r.Post("/manual/takeoff", s.takeOff)
		r.Post("/manual/land", s.land)
		r.Post("/manual/emergency", s.emergency)
		r.Put("/manual/max-pitch-roll", s.setMaxPitchRoll)

		r.Put("/followme/mode", s.setFollowMode)

		r.Post("/guided/location", s.moveToLocation)
		r.Post("/guided/relative", s.moveToRelative)

		r.Get("/flights", s.listFlights)

		r.Post("/updates", s.startUpdate)
		r.Get("/updates/{id}", s.getUpdate)
		r.Delete("/updates/{id}", s.cancelUpdate)
	})

	r.Get("/ws/pilotingitf", s.stream)
	return r
}

// Start начинает прием соединений
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Printf("Starting HTTP server on %s", s.config.Addr)
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop завершает сервер и отменяет незавершенные загрузки
func (s *Server) Stop() error {
	logger.Println("Stopping HTTP server...")

	s.uploadsMu.Lock()
	for _, req := range s.uploads {
		req.Cancel()
	}
	s.uploadsMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	logger.Println("HTTP server stopped")
	return nil
}
