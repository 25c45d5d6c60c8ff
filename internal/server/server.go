package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeadstarlingX/Aim-Trainer/internal/api"
	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/leaderboard"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
	"github.com/LeadstarlingX/Aim-Trainer/internal/session"
	"github.com/LeadstarlingX/Aim-Trainer/internal/telemetry"
)

// HealthService is the grpc health service name reporting the engine.
const HealthService = "aimtrainer.Session"

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level string
	}

	Game struct {
		SurfaceWidth           float64
		SurfaceHeight          float64
		DotRadius              float64
		MaxLiveTargets         int
		PenaltyProbability     float64
		HitBonus               int
		HarmPenalty            int
		FrameInterval          time.Duration
		DefaultDifficulty      string
		DefaultDurationSeconds int
		// Difficulties overrides the timing of tiers by name, e.g. "elite".
		Difficulties map[string]ProfileConfig
	}

	Leaderboard struct {
		Backend string
		Key     string
		Limit   int

		File struct {
			Path string
		}

		Redis struct {
			Addrs []string
			Pass  string
		}

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Pubsub struct {
		Redis struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}
}

type ProfileConfig struct {
	Lifespan      time.Duration
	SpawnInterval time.Duration
}

func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"

	s := session.DefaultSettings()
	c.Game.SurfaceWidth = s.Width
	c.Game.SurfaceHeight = s.Height
	c.Game.DotRadius = s.DotRadius
	c.Game.MaxLiveTargets = s.MaxLiveTargets
	c.Game.PenaltyProbability = s.PenaltyProbability
	c.Game.HitBonus = s.HitBonus
	c.Game.HarmPenalty = s.HarmPenalty
	c.Game.FrameInterval = s.FrameInterval
	c.Game.DefaultDifficulty = domain.DefaultDifficulty.String()
	c.Game.DefaultDurationSeconds = s.DefaultDurationSeconds

	c.Leaderboard.Backend = BackendMemory
	c.Leaderboard.Key = leaderboard.DefaultKey
	c.Leaderboard.Limit = leaderboard.DefaultLimit
	c.Leaderboard.File.Path = "aim-trainer-scores.json"

	c.Pubsub.Redis.Prefix = "aimtrainer"
	return c
}

// Settings turns the game section into engine settings. Unknown tier names
// are logged and skipped.
func (c Config) Settings() session.Settings {
	g := c.Game
	s := session.Settings{
		Width:                  g.SurfaceWidth,
		Height:                 g.SurfaceHeight,
		DotRadius:              g.DotRadius,
		MaxLiveTargets:         g.MaxLiveTargets,
		PenaltyProbability:     g.PenaltyProbability,
		HitBonus:               g.HitBonus,
		HarmPenalty:            g.HarmPenalty,
		FrameInterval:          g.FrameInterval,
		DefaultDurationSeconds: g.DefaultDurationSeconds,
		Profiles:               domain.DefaultProfiles(),
	}

	for name, p := range g.Difficulties {
		d, ok := domain.ParseDifficulty(name)
		if !ok {
			slog.Warn("server: unknown difficulty in config, ignored", "difficulty", name)
			continue
		}
		if p.Lifespan > 0 {
			s.Profiles[d].Lifespan = p.Lifespan
		}
		if p.SpawnInterval > 0 {
			s.Profiles[d].SpawnInterval = p.SpawnInterval
		}
	}

	return s
}

// LogLevel parses log.level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		loop        *loop.Loop
		leaderboard *leaderboard.Service
		session     *session.Coordinator
		metrics     *telemetry.Metrics
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	if strings.EqualFold(s.c.Leaderboard.Backend, BackendRedis) {
		s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Leaderboard.Redis.Addrs, s.c.Leaderboard.Redis.Pass)
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
	}

	if len(s.c.Pubsub.Redis.Addrs) > 0 {
		s.infra.redis.pubsub, err = connect("pubsub", s.c.Pubsub.Redis.Addrs, s.c.Pubsub.Redis.Pass)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
	}

	return nil
}

func (s *Server) initPostgres() error {
	if !strings.EqualFold(s.c.Leaderboard.Backend, BackendPostgres) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Leaderboard.Postgres
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

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() error {
	storage, err := s.leaderboardStorage()
	if err != nil {
		return fmt.Errorf("leaderboard storage: %w", err)
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Storage:  storage,
		Limit:    s.c.Leaderboard.Limit,
	})

	s.service.loop = loop.New(loop.RealScheduler())
	s.service.session = session.NewCoordinator(session.Config{
		Loop:        s.service.loop,
		EventBus:    s.eb,
		Leaderboard: s.service.leaderboard,
		Settings:    s.c.Settings(),
	})

	s.service.metrics, err = telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	s.service.metrics.Subscribe(s.eb)

	return nil
}

func (s *Server) leaderboardStorage() (leaderboard.Storage, error) {
	key := s.c.Leaderboard.Key
	if key == "" {
		key = leaderboard.DefaultKey
	}

	switch strings.ToLower(s.c.Leaderboard.Backend) {
	case "", BackendMemory:
		return leaderboard.NewMemoryStorage(), nil
	case BackendFile:
		return leaderboard.NewFileStorage(s.c.Leaderboard.File.Path), nil
	case BackendRedis:
		return leaderboard.NewRedisStorage(s.infra.redis.leaderboard, key), nil
	case BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		p := leaderboard.NewPostgresStorage(s.infra.postgres, key)
		if err := p.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.c.Leaderboard.Backend)
	}
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptors()...)
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)

	cfg := api.Config{
		Router:            e,
		EventBus:          s.eb,
		Session:           s.service.session,
		Leaderboard:       s.service.leaderboard,
		PubsubPrefix:      s.c.Pubsub.Redis.Prefix,
		DefaultDifficulty: domain.DifficultyOrDefault(s.c.Game.DefaultDifficulty),
	}
	// A nil client must not end up as a non-nil interface.
	if s.infra.redis.pubsub != nil {
		cfg.Redis = s.infra.redis.pubsub
	}
	api.New(cfg)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()

	// A running session is finished so its result is recorded before the
	// storage clients go away.
	if s.service.session.End(ctx) {
		slog.InfoContext(ctx, "server: ended running session")
	}

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	if r := s.infra.redis.leaderboard; r != nil {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close leaderboard redis failed", "error", err)
		}
	}
	if r := s.infra.redis.pubsub; r != nil {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close pubsub redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
