package cmd

import (
	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/internal/version"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/runtime"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create the database if needed and apply all migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		l.Sugar().Infow("fund-settler database",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("network", cfg.Network.String()),
		)

		grm, err := openDatabase(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup database", zap.Error(err))
		}

		rt := runtime.NewSettlerRuntime(grm, cfg, l)
		if err := rt.ValidateAndUpdateVersion(version.GetVersion()); err != nil {
			l.Sugar().Fatalw("Failed to validate version", zap.Error(err))
		}
		l.Sugar().Info("Database is up to date")
	},
}
