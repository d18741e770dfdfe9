package cmd

import (
	"context"
	"fmt"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/alerting"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/gateway"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/oracle"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/signer"
	"github.com/hedgefund-labs/fund-settler/pkg/distribution"
	"github.com/hedgefund-labs/fund-settler/pkg/eventBus"
	"github.com/hedgefund-labs/fund-settler/pkg/holders"
	"github.com/hedgefund-labs/fund-settler/pkg/manifest"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics"
	"github.com/hedgefund-labs/fund-settler/pkg/phaseMarker"
	"github.com/hedgefund-labs/fund-settler/pkg/postgres"
	"github.com/hedgefund-labs/fund-settler/pkg/postgres/migrations"
	"github.com/hedgefund-labs/fund-settler/pkg/settlement"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore/postgresSnapshotStore"
	"github.com/hedgefund-labs/fund-settler/pkg/txExecutor"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// settlerApp holds everything a command needs to drive the settlement pipeline.
type settlerApp struct {
	grm      *gorm.DB
	store    *postgresSnapshotStore.PostgresSnapshotStore
	eventBus *eventBus.EventBus
	sink     *metrics.MetricsSink
	pipeline *settlement.Pipeline
}

func openDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = true

	pg, err := postgres.NewPostgres(pgConfig, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup postgres connection: %w", err)
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm instance: %w", err)
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l, cfg)
	if err = migrator.MigrateAll(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return grm, nil
}

func buildSettlerApp(ctx context.Context, cfg *config.Config, l *zap.Logger) (*settlerApp, error) {
	addrs, err := cfg.GetLedgerAddresses()
	if err != nil {
		return nil, err
	}

	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics clients: %w", err)
	}
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}

	grm, err := openDatabase(cfg, l)
	if err != nil {
		return nil, err
	}

	gatewayUrl := cfg.GatewayConfig.Url
	if gatewayUrl == "" {
		gatewayUrl = cfg.DefaultGatewayUrl()
	}
	oracleUrl := cfg.OracleConfig.Url
	if oracleUrl == "" {
		oracleUrl = cfg.DefaultOracleUrl()
	}
	if cfg.SignerConfig.Url == "" {
		return nil, fmt.Errorf("%s is required", config.SignerUrl)
	}

	gw := gateway.NewClient(gatewayUrl, l)
	sc := signer.NewClient(cfg.SignerConfig.Url, cfg.SignerConfig.ApiToken, cfg.Network.String(), l)
	oc := oracle.NewClient(oracleUrl, cfg.OracleConfig.NftId, sc, l)

	account, err := sc.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot account: %w", err)
	}
	fm := &manifest.FundManager{
		BotAccount: account.Address,
		BotBadge:   addrs.FundBotBadge,
		Component:  addrs.FundManagerComponent,
	}

	eb := eventBus.NewEventBus(l)
	store := postgresSnapshotStore.NewPostgresSnapshotStore(grm, l)
	tracker := phaseMarker.NewPostgresTracker(grm, phaseMarker.DefaultMarkerName, l)

	executor := txExecutor.NewExecutor(gw, sc, txExecutor.ExecutorConfig{
		RetryDelay:   cfg.PipelineConfig.TxRetryDelay,
		PollInterval: cfg.GatewayConfig.PollInterval,
		PollAttempts: cfg.GatewayConfig.PollAttempts,
	}, sink, l)
	engine := distribution.NewEngine(executor, store, fm, cfg.PipelineConfig.BatchSize, cfg.PipelineConfig.DistributionFeeLock, sink, l)
	hs := holders.NewSource(gw, addrs.NodeLsuResource, addrs.CollateralNftResource, cfg.PipelineConfig.MinHolderBalance, l)

	pipeline := settlement.NewPipeline(
		settlement.NewConfig(cfg, addrs),
		gw,
		hs,
		store,
		tracker,
		executor,
		engine,
		oc,
		fm,
		alerting.NewBusNotifier(eb, "settlement"),
		sink,
		l,
	)

	l.Sugar().Infow("Settlement pipeline ready",
		zap.String("network", cfg.Network.String()),
		zap.String("botAccount", fm.BotAccount),
		zap.String("component", fm.Component),
		zap.String("validator", addrs.Validator),
		zap.Bool("collateral", addrs.CollateralNftResource != ""),
	)

	return &settlerApp{
		grm:      grm,
		store:    store,
		eventBus: eb,
		sink:     sink,
		pipeline: pipeline,
	}, nil
}
