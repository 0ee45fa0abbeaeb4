package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/speedcolor/internal/api"
	"github.com/victornm/speedcolor/internal/auth"
	"github.com/victornm/speedcolor/internal/domain"
	"github.com/victornm/speedcolor/internal/event"
	"github.com/victornm/speedcolor/internal/leaderboard"
	"github.com/victornm/speedcolor/internal/score"
	"github.com/victornm/speedcolor/internal/scoring"
	"github.com/victornm/speedcolor/internal/store"
	"github.com/victornm/speedcolor/internal/telemetry"
	"github.com/victornm/speedcolor/internal/user"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	healthInterval = 10 * time.Second
)

type Config struct {
	HTTP struct {
		Port           int32
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Storage struct {
		// Driver is postgres or memory.
		Driver string
	}

	Postgres struct {
		Addr         string
		User         string
		Pass         string
		Name         string
		EnsureSchema bool `mapstructure:"ensure_schema"`
	}

	// Redis carries notifications. No address disables them.
	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Auth struct {
		Secret     string
		TTL        time.Duration
		BcryptCost int `mapstructure:"bcrypt_cost"`
	}

	Leaderboard struct {
		DefaultLimit int `mapstructure:"default_limit"`
	}
}

// DefaultConfig is overridden by the config file and the environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	c.GRPC.Port = 8081
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Storage.Driver = DriverPostgres
	c.Postgres.EnsureSchema = true
	c.Redis.Prefix = "speedcolor"
	c.Auth.TTL = auth.DefaultTTL
	c.Leaderboard.DefaultLimit = scoring.DefaultLimit
	return c
}

type Server struct {
	c   Config
	log *slog.Logger

	eb      *event.Bus
	metrics *telemetry.Metrics
	reg     *prometheus.Registry

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	store  store.Store
	tokens *auth.Tokens

	service struct {
		user        *user.Service
		score       *score.Service
		leaderboard *leaderboard.Service
	}

	handler http.Handler
	http    *http.Server
	grpc    *grpc.Server
	health  *health.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// Validate reports every setting the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Storage.Driver))
	}

	if c.Leaderboard.DefaultLimit < 0 {
		errs = append(errs, fmt.Errorf("leaderboard.default_limit must not be negative, got %d", c.Leaderboard.DefaultLimit))
	}

	return errors.Join(errs...)
}

func Init(c Config, l *slog.Logger) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{c: c, log: l}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.eb = event.NewBus(event.WithLogger(s.log))
	s.reg = prometheus.NewRegistry()
	s.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = telemetry.NewMetrics(s.reg)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		if s.infra.redis != nil {
			_ = s.infra.redis.Close()
		}
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	if len(s.c.Redis.Addrs) == 0 {
		s.log.Warn("server: redis not configured, notifications disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r, s.log); err != nil {
		_ = r.Close()
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initStore() error {
	switch s.c.Storage.Driver {
	case DriverMemory:
		s.store = store.NewMemory()
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("unknown driver %q", s.c.Storage.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Postgres
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	p := store.NewPostgres(db)
	if pc.EnsureSchema {
		if err := p.EnsureSchema(ctx); err != nil {
			db.Close()
			return err
		}
	}

	s.infra.postgres = db
	s.store = p
	return nil
}

func (s *Server) initService() {
	s.tokens = auth.NewTokens(auth.TokenConfig{
		Secret: s.c.Auth.Secret,
		TTL:    s.c.Auth.TTL,
	})

	s.service.user = user.NewService(user.Config{
		Users:  s.store,
		Tokens: s.tokens,
		Hasher: auth.Hasher{Cost: s.c.Auth.BcryptCost},
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		Records:  s.store,
	})

	lc := leaderboard.Config{
		EventBus:     s.eb,
		Records:      s.store,
		Prefix:       s.c.Redis.Prefix,
		DefaultLimit: s.c.Leaderboard.DefaultLimit,
	}
	if s.infra.redis != nil {
		lc.Redis = s.infra.redis
	}
	s.service.leaderboard = leaderboard.NewService(lc)

	s.eb.Subscribe(domain.EventNameRecordCreated, s.metrics.CountRecordCreated)
}

func (s *Server) initAPI() {
	ac := api.Config{
		EventBus:     s.eb,
		Tokens:       s.tokens,
		User:         s.service.user,
		Score:        s.service.score,
		Leaderboard:  s.service.leaderboard,
		PubsubPrefix: s.c.Redis.Prefix,
	}
	if s.infra.redis != nil {
		ac.Redis = s.infra.redis
	}

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())
	e.Use(telemetry.GinLogger(s.log), s.metrics.GinMiddleware())
	if len(s.c.HTTP.AllowedOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins:  s.c.HTTP.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	api.New(ac).Register(e)
	s.handler = e

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions(s.log)...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Handler serves the HTTP API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		s.log.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		s.watchHealth(ctx)
		return nil
	})

	eg.Go(func() error {
		s.log.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		s.log.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		s.log.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// watchHealth reports the store reachability on the gRPC health service until ctx is done.
func (s *Server) watchHealth(ctx context.Context) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()

	for {
		s.checkHealth(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Server) checkHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Ping(ctx); err != nil {
		s.log.WarnContext(ctx, "server: store unreachable", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", status)
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			s.log.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	s.log.InfoContext(ctx, "server: shutdown completed")
}
