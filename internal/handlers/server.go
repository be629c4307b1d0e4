package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/middleware"
	"github.com/danmu-dashboard-go/internal/services/api"
	"github.com/danmu-dashboard-go/internal/services/cache"
	"github.com/danmu-dashboard-go/internal/services/rooms"
	"github.com/danmu-dashboard-go/internal/services/storage"
	"github.com/danmu-dashboard-go/internal/web"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server serves the dashboard pages
type Server struct {
	config    *config.Config
	api       *api.Client
	cache     *cache.QueryCache
	storage   *storage.Manager
	rooms     *rooms.Directory
	renderer  *web.Renderer
	localizer *i18n.Localizer
	limiter   *middleware.ClientRateLimiter
	metrics   *middleware.Metrics
	logger    *logrus.Logger
	loc       *time.Location
	now       func() time.Time
	http      *http.Server
}

// NewServer creates the dashboard server
func NewServer(
	cfg *config.Config,
	apiClient *api.Client,
	queryCache *cache.QueryCache,
	storage *storage.Manager,
	directory *rooms.Directory,
	renderer *web.Renderer,
	localizer *i18n.Localizer,
	limiter *middleware.ClientRateLimiter,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Server {
	return &Server{
		config:    cfg,
		api:       apiClient,
		cache:     queryCache,
		storage:   storage,
		rooms:     directory,
		renderer:  renderer,
		localizer: localizer,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
		loc:       cfg.Server.TimeLocation(),
		now:       time.Now,
	}
}

// Router wires every route of the dashboard
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	router.PathPrefix("/static/").Handler(web.StaticHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	pages := router.NewRoute().Subrouter()
	pages.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	pages.HandleFunc("/checker", s.handleCheckerForm).Methods(http.MethodGet)
	pages.HandleFunc("/checker", s.handleCheckerSubmit).Methods(http.MethodPost)
	pages.HandleFunc("/checker/{uid:[0-9]+}", s.handleChecker).Methods(http.MethodGet)
	pages.HandleFunc("/block_user", s.handleBlockUser).Methods(http.MethodGet)
	pages.HandleFunc("/block_user/page", s.handleBlockUserPage).Methods(http.MethodPost)
	pages.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	pages.HandleFunc("/{room_id:[0-9]+}", s.handleFeed).Methods(http.MethodGet)
	pages.HandleFunc("/{room_id:[0-9]+}/search", s.handleSearch).Methods(http.MethodPost)
	pages.HandleFunc("/{room_id:[0-9]+}/page", s.handleFeedPage).Methods(http.MethodPost)

	if s.limiter != nil {
		pages.Use(s.limiter.Middleware(s.metrics))
	}
	router.Use(s.metrics.Instrument, middleware.RequestLogger(s.logger), middleware.Recoverer(s.logger))

	return router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// pages may wait for the upstream before rendering
		WriteTimeout: s.config.Server.RenderWait + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	s.logger.WithField("addr", s.http.Addr).Info("Dashboard server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
