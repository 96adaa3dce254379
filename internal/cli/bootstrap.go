// Package cli wires configuration into runnable commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Oleguzik/ngo-automation/internal/application/service"
	"github.com/Oleguzik/ngo-automation/internal/domain/resolver"
	"github.com/Oleguzik/ngo-automation/internal/domain/vendor"
	"github.com/Oleguzik/ngo-automation/internal/events"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/config"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/storage"
)

// App bundles the wired service with the resources it owns.
type App struct {
	Service *service.DedupeService
	Repo    storage.Repository

	publisher events.Publisher
}

// Close releases storage and event connections.
func (a *App) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.Repo != nil {
		_ = a.Repo.Close()
	}
}

// ResolverConfig builds resolver tuning from file configuration.
func ResolverConfig(cfg config.DedupeConfig) (resolver.Config, error) {
	tolerance, err := decimal.NewFromString(cfg.AmountTolerance)
	if err != nil {
		return resolver.Config{}, fmt.Errorf("amount tolerance %q is not numeric: %w", cfg.AmountTolerance, err)
	}
	return resolver.Config{
		WindowDays:      cfg.WindowDays,
		AmountTolerance: tolerance,
		ToleranceMode:   resolver.ToleranceMode(cfg.ToleranceMode),
		SimilarityFloor: cfg.SimilarityFloor,
	}, nil
}

// BuildApp opens storage, connects the event publisher when
// configured and wires the dedupe service.
func BuildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	resolverCfg, err := ResolverConfig(cfg.Dedupe)
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(resolverCfg)
	if err != nil {
		return nil, err
	}

	normalizer := vendor.Default()
	if len(cfg.Dedupe.VendorSuffixes) > 0 {
		suffixes := append([]string{}, vendor.DefaultSuffixes...)
		normalizer = vendor.New(append(suffixes, cfg.Dedupe.VendorSuffixes...))
	}

	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("connect NATS: %w", err)
		}
		publisher = natsPub
		logger.Info("duplicate events enabled", "url", cfg.Events.NATSURL, "subject", cfg.Events.Subject)
	}

	return &App{
		Service:   service.NewDedupeService(repo, normalizer, res, publisher, logger),
		Repo:      repo,
		publisher: publisher,
	}, nil
}
