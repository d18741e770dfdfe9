package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore/postgresSnapshotStore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect stored depositor snapshots",
}

var exportSnapshotCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the accounts of a snapshot as csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		var date *time.Time
		if raw := viper.GetString(config.KebabToSnakeCase(config.SnapshotExportDate)); raw != "" {
			parsed, err := snapshotStore.ParseSnapshotDate(raw)
			if err != nil {
				return err
			}
			date = &parsed
		}

		grm, err := openDatabase(cfg, l)
		if err != nil {
			return err
		}
		store := postgresSnapshotStore.NewPostgresSnapshotStore(grm, l)

		var out io.Writer = os.Stdout
		if path := viper.GetString(config.KebabToSnakeCase(config.SnapshotExportOutput)); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return errors.Wrap(err, "failed to create output file")
			}
			defer f.Close()
			out = f
		}

		snapshot, count, err := snapshotStore.ExportSnapshotAccounts(context.Background(), store, date, out)
		if err != nil {
			return err
		}
		l.Sugar().Infow("Exported snapshot",
			zap.Time("date", snapshot.Date),
			zap.String("state", snapshot.State.String()),
			zap.Int("accounts", count),
		)
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(exportSnapshotCmd)
}
