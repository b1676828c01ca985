package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/arbengine/internal/blob/s3"
	"github.com/alanyoungcy/arbengine/internal/cache/redis"
	"github.com/alanyoungcy/arbengine/internal/config"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/notify"
	"github.com/alanyoungcy/arbengine/internal/platform/paper"
	"github.com/alanyoungcy/arbengine/internal/platform/venue"
	"github.com/alanyoungcy/arbengine/internal/server/handler"
	"github.com/alanyoungcy/arbengine/internal/store/postgres"
)

// Collaborators is the combined discovery, execution and hedge backend.
type Collaborators interface {
	domain.Discoverer
	domain.OrderExecutor
	domain.HedgeCreator
}

// Dependencies bundles every infrastructure dependency the modes need. Stores
// and caches stay nil when their backend is not configured.
type Dependencies struct {
	// Stores
	ExecutionStore domain.ExecutionStore
	HedgeStore     domain.HedgeStore
	ConfigStore    domain.AutomationConfigStore
	AuditStore     domain.AuditStore

	// Caches
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Archiver domain.Archiver

	// Collaborators
	Collaborators Collaborators

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks are probed by GET /api/health.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]handler.HealthCheck),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			applied, err := pgClient.RunMigrations(ctx)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
			if applied > 0 {
				logger.InfoContext(ctx, "postgres migrations applied", slog.Int("count", applied))
			}
		}

		pool := pgClient.Pool()
		deps.ExecutionStore = postgres.NewExecutionStore(pool)
		deps.HedgeStore = postgres.NewHedgeStore(pool)
		deps.ConfigStore = postgres.NewConfigStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   cfg.Redis.MaxRetries,
			TLSEnabled:   cfg.Redis.TLSEnabled,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			StreamMaxLen: cfg.Redis.StreamMaxLen,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage (only when history is archived) ---
	if cfg.Archive.Enabled {
		if deps.ExecutionStore == nil {
			cleanup()
			return nil, nil, errors.New("wire: archive requires postgres")
		}
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3Client,
			s3Client,
			deps.ExecutionStore,
			deps.AuditStore,
			logger,
		)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Collaborators ---
	collab, err := newCollaborators(cfg.Collaborators, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: collaborators: %w", err)
	}
	deps.Collaborators = collab

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func newCollaborators(cfg config.CollaboratorsConfig, logger *slog.Logger) (Collaborators, error) {
	switch strings.ToLower(cfg.Kind) {
	case "http":
		return venue.New(venue.Config{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			APISecret:      cfg.APISecret,
			RequestsPerSec: cfg.RequestsPerSec,
			Burst:          cfg.Burst,
			Timeout:        cfg.Timeout.Duration,
			MaxRetries:     cfg.MaxRetries,
		}, logger), nil
	case "paper":
		return paper.New(paper.Config{
			RejectRate:    cfg.Paper.RejectRate,
			Latency:       cfg.Paper.Latency.Duration,
			Opportunities: paperOpportunities(cfg.Paper.Opportunities),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.Kind)
	}
}

func paperOpportunities(fixtures []config.PaperOpportunity) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(fixtures))
	for _, f := range fixtures {
		opp := domain.Opportunity{
			Type:             domain.OpportunityType(f.Type),
			Symbol:           f.Symbol,
			BuyExchange:      f.BuyExchange,
			SellExchange:     f.SellExchange,
			NetProfit:        decimal.NewFromFloat(f.NetProfit),
			SpreadPercentage: decimal.NewFromFloat(f.SpreadPercentage),
			VolumeAvailable:  decimal.NewFromFloat(f.VolumeAvailable),
		}
		if f.HedgeLong != "" && f.HedgeShort != "" {
			opp.Hedge = &domain.HedgeRecommendation{
				LongExchange:           f.HedgeLong,
				ShortExchange:          f.HedgeShort,
				ExpectedFundingCapture: decimal.NewFromFloat(f.FundingCapture),
				HoldPeriodHours:        f.HoldPeriodHours,
			}
		}
		opps = append(opps, opp)
	}
	return opps
}
