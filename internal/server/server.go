package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
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
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/scamquiz/internal/api"
	"github.com/victornm/scamquiz/internal/bot"
	"github.com/victornm/scamquiz/internal/event"
	"github.com/victornm/scamquiz/internal/gemini"
	"github.com/victornm/scamquiz/internal/leaderboard"
	"github.com/victornm/scamquiz/internal/line"
	"github.com/victornm/scamquiz/internal/quiz"
	"github.com/victornm/scamquiz/internal/score"
	"github.com/victornm/scamquiz/internal/storage/postgres"
	"github.com/victornm/scamquiz/internal/storage/postgres/migrations"
	redisstore "github.com/victornm/scamquiz/internal/storage/redis"
	"github.com/victornm/scamquiz/internal/telemetry"
)

type store interface {
	quiz.SessionStore
	score.Store
}

type Server struct {
	c Config

	eb      *event.Bus
	metrics *telemetry.Metrics

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
		store    store
		gemini   *gemini.Client
		line     *line.Client
	}

	service struct {
		quiz        *quiz.Service
		score       *score.Service
		leaderboard *leaderboard.Service
	}

	bot *bot.Handler

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(ctx context.Context, c Config) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}

	s := &Server{c: c}

	var err error
	s.metrics, err = telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("server: register metrics: %w", err)
	}

	s.eb = event.NewBus()
	s.metrics.Subscribe(s.eb)

	if err := s.initInfra(ctx); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra(ctx context.Context) error {
	switch s.c.Store.Driver {
	case StorePostgres:
		if err := s.initPostgres(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	default:
		if err := s.initRedis(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	var err error
	s.infra.gemini, err = gemini.NewClient(ctx, gemini.Config{
		APIKey:            s.c.Gemini.APIKey,
		Model:             s.c.Gemini.Model,
		Temperature:       s.c.Gemini.Temperature,
		Timeout:           s.c.Gemini.Timeout,
		RequestsPerMinute: s.c.Gemini.RequestsPerMinute,
		Templates:         s.c.Gemini.Templates,
		Metrics:           s.metrics,
	})
	if err != nil {
		return err
	}

	s.infra.line, err = line.NewClient(line.Config{
		Endpoint:    s.c.Line.Endpoint,
		AccessToken: s.c.Line.ChannelAccessToken,
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Server) initRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	s.infra.store = redisstore.NewStore(redisstore.Config{
		Redis:  r,
		Prefix: s.c.Redis.Prefix,
	})
	return nil
}

func (s *Server) initPostgres(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dsn := s.c.PostgresDSN()

	group, err := migrations.Run(ctx, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if !group.IsZero() {
		slog.InfoContext(ctx, fmt.Sprintf("server: applied migrations %s", group))
	}

	cc, err := pgxpool.ParseConfig(dsn)
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
	s.infra.store = postgres.NewStore(postgres.Config{DB: db})
	return nil
}

func (s *Server) initService() {
	s.service.score = score.NewService(score.Config{
		Store: s.infra.store,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		EventBus:  s.eb,
		Sessions:  s.infra.store,
		Score:     s.service.score,
		Generator: s.infra.gemini,
		Analyzer:  s.infra.gemini,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Score: s.service.score,
		Size:  s.c.Leaderboard.Size,
	})

	s.bot = bot.NewHandler(bot.Config{
		Quiz:        s.service.quiz,
		Leaderboard: s.service.leaderboard,
		Metrics:     s.metrics,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	api.New(api.Config{
		ChannelSecret: s.c.Line.ChannelSecret,
		Bot:           s.bot,
		Replier:       s.infra.line,
		Metrics:       s.metrics,
		Concurrency:   s.c.Webhook.Concurrency,
	}).Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.health = health.NewServer()
	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	healthpb.RegisterHealthServer(s.grpc, s.health)
}

// Start serves until Shutdown is called or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	var eg errgroup.Group

	if s.c.GRPC.Port != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
		if err != nil {
			return fmt.Errorf("grpc server: listen: %w", err)
		}

		eg.Go(func() error {
			slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
			return s.grpc.Serve(lis)
		})
	}

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if err := s.infra.gemini.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close gemini client failed", "error", err)
	}
	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
