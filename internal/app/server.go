// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cuscatlan-service/internal/config"
	"cuscatlan-service/internal/db"
	authHandler "cuscatlan-service/internal/handlers/auth"
	contentHandler "cuscatlan-service/internal/handlers/content"
	subscriptionHandler "cuscatlan-service/internal/handlers/subscription"
	wsHandler "cuscatlan-service/internal/handlers/websocket"
	"cuscatlan-service/internal/middleware"
	"cuscatlan-service/internal/pkg/jwt"
	"cuscatlan-service/internal/pkg/session"
	"cuscatlan-service/internal/repository/postgres"
	"cuscatlan-service/internal/repository/redisstore"
	authUsecase "cuscatlan-service/internal/service/auth"
	subscriptionUsecase "cuscatlan-service/internal/service/subscription"
	"cuscatlan-service/internal/websocket"
	wsHandlers "cuscatlan-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	// mu guards the fields Setup fills in and Shutdown tears down
	mu         sync.Mutex
	httpServer *http.Server
	redis      *redis.Client
	pool       *pgxpool.Pool
	hubCancel  context.CancelFunc

	authService *authUsecase.AuthService
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine, logger: logger}
}

// Setup connects the backing stores, wires the application and prepares the HTTP
// server. It must return before Serve is called; a failed Setup still needs Shutdown.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return err
	}
	s.redis = redisClient
	s.logger.Info("connected to redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- PostgreSQL (optional) -----
	if s.cfg.StoreBackend == config.StorePostgres {
		pool, err := db.ConnectDB(s.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		s.pool = pool
		if err := postgres.NewDB(pool).EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		s.logger.Info("connected to postgres")
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	handlers, err := s.wire(jwtManager)
	if err != nil {
		return err
	}

	s.initializeAdmin()

	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.CORSAllowedOrigins),
	)
	SetupRouter(s.engine, s.logger, handlers)

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Serve blocks serving HTTP. It returns nil once Shutdown has been called, even
// when Shutdown ran first.
func (s *Server) Serve() error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return fmt.Errorf("server is not set up")
	}

	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr), zap.String("store", s.cfg.StoreBackend))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// wire builds stores, services, the websocket hub and the HTTP handlers on top of
// the already-connected clients.
func (s *Server) wire(jwtManager *jwt.Manager) (*Handlers, error) {
	// ----- Repositories -----
	var (
		subscriptionStore subscriptionUsecase.Store
		identityStore     authUsecase.IdentityRepository
	)
	switch s.cfg.StoreBackend {
	case config.StorePostgres:
		if s.pool == nil {
			return nil, fmt.Errorf("postgres store selected without a connection")
		}
		subscriptionStore = postgres.NewSubscriptionRepository(s.pool)
		identityStore = postgres.NewAuthRepository(s.pool)
	default:
		subscriptionStore = redisstore.NewSubscriptionStore(s.redis)
		identityStore = redisstore.NewIdentityStore(s.redis)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(s.redis, s.logger)
	rateLimiter := session.NewRateLimiter(s.redis)

	// ----- Services -----
	authService := authUsecase.NewAuthService(identityStore, jwtManager, sessionManager, rateLimiter, s.logger)
	s.authService = authService

	subscriptionService := subscriptionUsecase.NewSubscriptionService(subscriptionStore, s.cfg.Policy, s.logger)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(jwtManager.Verifier, sessionManager, s.logger)
	if err := hub.RegisterHandler(wsHandlers.NewSubscriptionHandler(subscriptionService)); err != nil {
		return nil, fmt.Errorf("failed to register websocket handler: %w", err)
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go hub.Run(hubCtx)

	authService.SetNotifier(hub)
	subscriptionService.SetNotifier(hub)

	// ----- Handlers -----
	return &Handlers{
		AuthHandler:         authHandler.NewAuthHandler(authService, s.logger),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(subscriptionService, s.cfg.LifetimePrice, s.logger),
		ContentHandler:      contentHandler.NewContentHandler(s.cfg.ContentDir, s.logger),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, s.cfg.CORSAllowedOrigins, s.logger),
		AuthMiddleware:      middleware.NewAuthMiddleware(authService),
		Entitlements:        subscriptionService,
		Health:              s.health,
	}, nil
}

// initializeAdmin creates the bootstrap admin when credentials are configured
func (s *Server) initializeAdmin() {
	if s.cfg.SuperAdminEmail == "" || s.cfg.SuperAdminPassword == "" {
		s.logger.Warn("SUPER_ADMIN_EMAIL or SUPER_ADMIN_PASSWORD not set, skipping admin bootstrap")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.authService.EnsureAdmin(ctx, s.cfg.SuperAdminEmail, s.cfg.SuperAdminPassword, s.cfg.SuperAdminName); err != nil {
		// startup continues without an admin
		s.logger.Error("failed to initialize admin", zap.Error(err))
	}
}

// health reports whether the backing stores answer
func (s *Server) health(ctx context.Context) map[string]string {
	status := map[string]string{"redis": "ok"}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
	}
	if s.pool != nil {
		status["postgres"] = "ok"
		if err := s.pool.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
		}
	}
	return status
}

// Shutdown drains HTTP, stops the hub and closes the store connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.hubCancel != nil {
		s.hubCancel()
	}
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
