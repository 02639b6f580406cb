package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"mediglot/internal/audit"
	auditmetrics "mediglot/internal/audit/metrics"
	kafkasink "mediglot/internal/audit/sink/kafka"
	postgressink "mediglot/internal/audit/sink/postgres"
	"mediglot/internal/audit/sink/redisstream"
	s3sink "mediglot/internal/audit/sink/s3"
	"mediglot/internal/audit/sink/slogsink"
	httpapi "mediglot/internal/http"
	"mediglot/internal/platform/config"
	"mediglot/internal/platform/httpserver"
	"mediglot/internal/platform/logger"
	"mediglot/internal/platform/metrics"
	platformredis "mediglot/internal/platform/redis"
	"mediglot/internal/policy"
	"mediglot/internal/session"
	"mediglot/internal/translate"
	"mediglot/internal/translate/gemini"
)

func main() {
	cmd := &cli.Command{
		Name:  "mediglot",
		Usage: "compliance-aware medical text translation service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("MEDIGLOT_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("MEDIGLOT_LOG_LEVEL"),
				Usage:   "Log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:    "session-strict",
				Sources: cli.EnvVars("MEDIGLOT_SESSION_STRICT"),
				Usage:   "Reject requests without a session start marker",
			},
			&cli.StringFlag{
				Name:    "gemini-api-key",
				Sources: cli.EnvVars("GEMINI_API_KEY"),
				Usage:   "API key for the Gemini collaborator",
			},
			&cli.StringFlag{
				Name:    "gemini-model",
				Value:   gemini.DefaultModel,
				Sources: cli.EnvVars("MEDIGLOT_GEMINI_MODEL"),
				Usage:   "Gemini model identifier",
			},
			&cli.StringFlag{
				Name:    "gemini-base-url",
				Value:   gemini.DefaultBaseURL,
				Sources: cli.EnvVars("MEDIGLOT_GEMINI_BASE_URL"),
				Usage:   "Gemini API base URL",
			},
			&cli.DurationFlag{
				Name:    "gemini-timeout",
				Value:   gemini.DefaultTimeout,
				Sources: cli.EnvVars("MEDIGLOT_GEMINI_TIMEOUT"),
				Usage:   "Per-call timeout for the Gemini collaborator",
			},
			&cli.StringFlag{
				Name:    "audit-sink",
				Value:   "slog",
				Sources: cli.EnvVars("MEDIGLOT_AUDIT_SINK"),
				Usage:   "Durable audit sink: slog, redis, postgres, kafka, s3",
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Sources: cli.EnvVars("MEDIGLOT_REDIS_URL"),
				Usage:   "Redis URL for the redis audit sink",
			},
			&cli.StringFlag{
				Name:    "redis-stream",
				Value:   redisstream.DefaultStream,
				Sources: cli.EnvVars("MEDIGLOT_REDIS_STREAM"),
				Usage:   "Redis stream key for audit events",
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Sources: cli.EnvVars("MEDIGLOT_POSTGRES_DSN"),
				Usage:   "Postgres DSN for the postgres audit sink",
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Sources: cli.EnvVars("MEDIGLOT_KAFKA_BROKERS"),
				Usage:   "Kafka broker addresses for the kafka audit sink",
			},
			&cli.StringFlag{
				Name:    "kafka-topic",
				Value:   kafkasink.DefaultTopic,
				Sources: cli.EnvVars("MEDIGLOT_KAFKA_TOPIC"),
				Usage:   "Kafka topic for audit events",
			},
			&cli.StringFlag{
				Name:    "s3-bucket",
				Sources: cli.EnvVars("MEDIGLOT_S3_BUCKET"),
				Usage:   "S3 bucket for the s3 audit sink",
			},
			&cli.StringFlag{
				Name:    "s3-region",
				Sources: cli.EnvVars("MEDIGLOT_S3_REGION"),
				Usage:   "AWS region for the s3 audit sink",
			},
			&cli.IntFlag{
				Name:    "audit-flush-threshold",
				Value:   audit.DefaultFlushThreshold,
				Sources: cli.EnvVars("MEDIGLOT_AUDIT_FLUSH_THRESHOLD"),
				Usage:   "Queue size that triggers an audit flush",
			},
			&cli.DurationFlag{
				Name:    "audit-flush-interval",
				Value:   audit.DefaultFlushInterval,
				Sources: cli.EnvVars("MEDIGLOT_AUDIT_FLUSH_INTERVAL"),
				Usage:   "Interval between timer-driven audit flushes",
			},
			&cli.IntFlag{
				Name:    "audit-retry-cycles",
				Value:   audit.DefaultMaxRetryCycles,
				Sources: cli.EnvVars("MEDIGLOT_AUDIT_RETRY_CYCLES"),
				Usage:   "Failed flush cycles to retain a batch before discarding it",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	cfg := config.Config{
		Addr:          c.String("addr"),
		LogLevel:      c.String("log-level"),
		SessionStrict: c.Bool("session-strict"),
		Audit: config.Audit{
			Sink:           c.String("audit-sink"),
			RedisURL:       c.String("redis-url"),
			RedisStream:    c.String("redis-stream"),
			PostgresDSN:    c.String("postgres-dsn"),
			KafkaBrokers:   c.StringSlice("kafka-brokers"),
			KafkaTopic:     c.String("kafka-topic"),
			S3Bucket:       c.String("s3-bucket"),
			S3Region:       c.String("s3-region"),
			FlushThreshold: int(c.Int("audit-flush-threshold")),
			FlushInterval:  c.Duration("audit-flush-interval"),
			MaxRetryCycles: int(c.Int("audit-retry-cycles")),
		},
		Gemini: config.Gemini{
			APIKey:  c.String("gemini-api-key"),
			Model:   c.String("gemini-model"),
			BaseURL: c.String("gemini-base-url"),
			Timeout: c.Duration("gemini-timeout"),
		},
	}

	log := logger.New(cfg.LogLevel)

	sink, closeSink, err := buildSink(ctx, cfg.Audit, log)
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}
	defer closeSink()

	auditLog := audit.New(sink,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithFlushThreshold(cfg.Audit.FlushThreshold),
		audit.WithFlushInterval(cfg.Audit.FlushInterval),
		audit.WithMaxRetryCycles(cfg.Audit.MaxRetryCycles),
	)
	auditLog.Start(ctx)

	collaborator, err := gemini.New(cfg.Gemini.APIKey,
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithTimeout(cfg.Gemini.Timeout),
	)
	if err != nil {
		return fmt.Errorf("build gemini client: %w", err)
	}

	service := translate.NewService(collaborator, collaborator, auditLog,
		session.NewPolicy(cfg.SessionStrict), log)

	router := httpapi.NewRouter(httpapi.Deps{
		Service:  service,
		AuditLog: auditLog,
		Policy:   policy.New(collaborator.Origin()),
		Metrics:  metrics.New(),
		Logger:   log,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			"addr", cfg.Addr,
			"audit_sink", cfg.Audit.Sink,
			"session_strict", cfg.SessionStrict,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}

		// One last flush so queued audit events outlive the process.
		flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		auditLog.Stop(flushCtx)
		return nil
	})

	return g.Wait()
}

// buildSink constructs the configured durable sink. The returned closer
// releases any underlying connection and is safe to call once.
func buildSink(ctx context.Context, cfg config.Audit, log *slog.Logger) (audit.Sink, func(), error) {
	noop := func() {}

	switch cfg.Sink {
	case "slog", "":
		return slogsink.New(log), noop, nil

	case "redis":
		if cfg.RedisURL == "" {
			return nil, noop, errors.New("redis sink requires --redis-url")
		}
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		sink := redisstream.New(client.Client, redisstream.WithStream(cfg.RedisStream))
		return sink, func() { client.Close() }, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, noop, errors.New("postgres sink requires --postgres-dsn")
		}
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return postgressink.New(db), func() { db.Close() }, nil

	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, noop, errors.New("kafka sink requires --kafka-brokers")
		}
		client, err := kafkasink.NewClient(cfg.KafkaBrokers)
		if err != nil {
			return nil, noop, err
		}
		sink := kafkasink.New(client, kafkasink.WithTopic(cfg.KafkaTopic))
		return sink, func() { client.Close() }, nil

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, noop, errors.New("s3 sink requires --s3-bucket")
		}
		sink, err := s3sink.New(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, noop, err
		}
		return sink, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}
