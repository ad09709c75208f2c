package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/grumpyguvner/mailkeys/internal/config"
	"github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/grumpyguvner/mailkeys/internal/middleware"
	"github.com/grumpyguvner/mailkeys/internal/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	config          *config.Config
	store           keys.Store
	async           *keys.Async
	validator       *validation.KeyValidator
	logger          *zap.Logger
	httpServer      *http.Server
	rateLimiter     *middleware.RateLimiter
	startTime       time.Time
	activeRequests  atomic.Int64
	shutdownStarted atomic.Bool

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds the HTTP API over store. An empty bearer token disables
// authentication.
func NewServer(cfg *config.Config, store keys.Store, logger *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("key index store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:    cfg,
		store:     store,
		async:     keys.NewAsync(store),
		validator: validation.NewKeyValidator(),
		logger:    logger,
		startTime: time.Now(),
	}

	if cfg.BearerToken == "" {
		logger.Warn("bearer token not configured, API authentication disabled")
	}

	s.httpServer = &http.Server{
		Handler:        s.applyMiddleware(s.router()),
		ReadTimeout:    seconds(cfg.ReadTimeout),
		WriteTimeout:   seconds(cfg.WriteTimeout),
		IdleTimeout:    seconds(cfg.IdleTimeout),
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Handler returns the fully wrapped handler, as served by Start
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	// Repository names such as cassandra://var/mail/error travel as
	// percent-encoded single segments.
	r.UseEncodedPath()
	r.SkipClean(true)
	r.Use(middleware.PrometheusMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	repos := r.PathPrefix("/repositories").Subrouter()
	repos.HandleFunc("/{repository:[^/]*}/keys", s.requireAuth(s.handleListKeys)).Methods(http.MethodGet)
	repos.HandleFunc("/{repository:[^/]*}/keys", s.requireAuth(s.handleStoreKeys)).Methods(http.MethodPost)
	repos.HandleFunc("/{repository:[^/]*}/keys/{key:[^/]*}", s.requireAuth(s.handleStoreKey)).Methods(http.MethodPut)
	repos.HandleFunc("/{repository:[^/]*}/keys/{key:[^/]*}", s.requireAuth(s.handleRemoveKey)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SendErrorResponse(w, r, errors.NotFoundError("no such endpoint"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := errors.New(errors.ErrorTypeInvalidArgument, fmt.Sprintf("method %s not allowed", r.Method))
		err.StatusCode = http.StatusMethodNotAllowed
		middleware.SendErrorResponse(w, r, err)
	})

	return r
}

// Start listens on the configured port and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("key index API listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	return nil
}

// Addr returns the bound address, or nil before Start has listened
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownStarted.Store(true)
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if active := s.activeRequests.Load(); active > 0 {
		s.logger.Info("waiting for active requests to complete", zap.Int64("active", active))
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if active := s.activeRequests.Load(); active > 0 {
					s.logger.Info("still waiting for active requests", zap.Int64("active", active))
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	err := s.httpServer.Shutdown(ctx)
	close(done)

	if err != nil {
		if err == context.DeadlineExceeded {
			if forced := s.activeRequests.Load(); forced > 0 {
				s.logger.Warn("forced shutdown with active requests", zap.Int64("active", forced))
			}
		}
		return err
	}

	s.logger.Info("all connections drained")
	return nil
}

func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Request flow: ActiveRequest -> RateLimit -> RequestID -> Recovery -> Deadline -> router
	handler = middleware.Deadline(seconds(s.config.RequestTimeout))(handler)
	handler = middleware.Recovery(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	if s.config.RateLimitPerMinute > 0 {
		s.rateLimiter = middleware.NewRateLimiter(
			s.config.RateLimitPerMinute,
			s.config.RateLimitBurst,
			5*time.Minute,
			s.logger,
		)
		handler = s.rateLimiter.Middleware(handler)
	}

	return s.activeRequestsMiddleware(handler)
}

func (s *Server) activeRequestsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.shutdownStarted.Load() {
			middleware.SendErrorResponse(w, r, errors.New(errors.ErrorTypeStorageUnavailable, "server is shutting down"))
			return
		}

		s.activeRequests.Add(1)
		defer s.activeRequests.Add(-1)

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.BearerToken == "" {
			next(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			middleware.SendErrorResponse(w, r, errors.AuthError("missing authorization header"))
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.BearerToken)) != 1 {
			middleware.SendErrorResponse(w, r, errors.AuthError("invalid authorization token"))
			return
		}

		next(w, r)
	}
}
