package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/HendryAvila/workboard-mcp/internal/config"
	"github.com/HendryAvila/workboard-mcp/internal/credentials"
	"github.com/HendryAvila/workboard-mcp/internal/graphql"
	"github.com/HendryAvila/workboard-mcp/internal/metadata"
	"github.com/HendryAvila/workboard-mcp/internal/metrics"
	"github.com/HendryAvila/workboard-mcp/internal/queue"
	"github.com/HendryAvila/workboard-mcp/internal/resolver"
	"github.com/HendryAvila/workboard-mcp/internal/sheets"
	"github.com/HendryAvila/workboard-mcp/internal/snapshot"
	"github.com/HendryAvila/workboard-mcp/internal/workboard"
)

// Services holds every long-lived component. The MCP server and the CLI
// subcommands share one instance.
type Services struct {
	Config      *config.Config
	Logger      *zap.SugaredLogger
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Boards      *workboard.Client
	Metadata    *metadata.Cache
	Resolver    *resolver.Resolver
	Queue       *queue.Queue
	Credentials *credentials.Cache
	Sheets      *sheets.Client

	snapshots     snapshot.Store
	metricsServer *http.Server
}

// NewServices builds the component graph from cfg. Nothing talks to the
// network until a tool runs or Start is called.
func NewServices(cfg *config.Config, logger *zap.SugaredLogger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	transport := graphql.NewHTTPTransport(graphql.Options{
		URL:               cfg.API.URL,
		Token:             cfg.API.Token,
		APIVersion:        cfg.API.Version,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Logger:            logger.Named("graphql"),
	})
	boards := workboard.New(transport, logger.Named("workboard"))

	store, err := snapshot.Open(cfg.Metadata.SnapshotDSN)
	if err != nil {
		return nil, fmt.Errorf("opening metadata snapshot store: %w", err)
	}

	opts := []metadata.Option{
		metadata.WithLogger(logger.Named("metadata")),
		metadata.WithMetrics(m),
	}
	if store != nil {
		opts = append(opts, metadata.WithPersister(store))
	}
	cache := metadata.New(metadata.Config{
		Staleness: cfg.Metadata.Staleness,
		Boards:    cfg.Metadata.Boards,
	}, boards, opts...)

	q := queue.New(queue.Config{
		MinInterval:    cfg.Queue.MinInterval,
		MaxConcurrency: cfg.Queue.MaxConcurrency,
	}, queue.WithLogger(logger.Named("queue")), queue.WithMetrics(m))

	creds := credentials.New(credentials.Config{
		Identity:       cfg.Credentials.Identity,
		PrivateKey:     cfg.Credentials.PrivateKey,
		SafetyMargin:   cfg.Credentials.SafetyMargin,
		CachedLifetime: cfg.Credentials.CachedLifetime,
	}, &credentials.JWTProvider{
		TokenURL: cfg.Credentials.TokenURL,
		Scopes:   cfg.Credentials.Scopes,
	}, credentials.WithLogger(logger.Named("credentials")), credentials.WithMetrics(m))

	return &Services{
		Config:      cfg,
		Logger:      logger,
		Registry:    reg,
		Metrics:     m,
		Boards:      boards,
		Metadata:    cache,
		Resolver:    resolver.New(cache, boards, logger.Named("resolver"), m),
		Queue:       q,
		Credentials: creds,
		Sheets: sheets.New(q, creds, sheets.Options{
			BaseURL: cfg.Sheets.URL,
			Timeout: cfg.API.Timeout,
			Logger:  logger.Named("sheets"),
		}),
		snapshots: store,
	}, nil
}

// Start restores the persisted snapshot, starts the periodic sync and, when
// configured, the metrics listener. Background work stops with ctx.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Metadata.Warm(ctx); err != nil {
		// A broken snapshot only costs a cold start.
		s.Logger.Warnw("metadata warm start failed", "error", err)
	}

	if !s.Config.HasCredentials() {
		s.Logger.Info("no service identity configured, spreadsheet export will report a configuration error")
	}

	go s.Metadata.Run(ctx, s.Config.Metadata.SyncInterval)

	if addr := s.Config.Metrics.Addr; addr != "" {
		s.metricsServer = &http.Server{
			Addr:              addr,
			Handler:           metrics.Handler(s.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.Logger.Infow("metrics listener started", "addr", addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Errorw("metrics listener stopped", "error", err)
			}
		}()
	}
	return nil
}

// Close drains the queue and releases the snapshot store and the metrics
// listener. It is safe to call more than once.
func (s *Services) Close() {
	s.Queue.Close()

	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.Logger.Warnw("metrics listener shutdown", "error", err)
		}
		cancel()
		s.metricsServer = nil
	}

	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			s.Logger.Warnw("snapshot store close", "error", err)
		}
		s.snapshots = nil
	}
	_ = s.Logger.Sync()
}
