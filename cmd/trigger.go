package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/internal/tracer"
	"github.com/hedgefund-labs/fund-settler/pkg/alerting"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/telegram"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var triggerCmd = &cobra.Command{
	Use:       "trigger [step1|step2|step3|reset-stuck-funds|fee-balance]",
	Short:     "Run a single settlement step once and print its result",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"step1", "step2", "step3", "reset-stuck-funds", "fee-balance"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.NewConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		tracer.StartTracer(cfg.DataDogConfig.TracingConfig.Enabled, cfg.Network)
		defer tracer.StopTracer(cfg.DataDogConfig.TracingConfig.Enabled)

		app, err := buildSettlerApp(ctx, cfg, l)
		if err != nil {
			return err
		}

		var sender alerting.Sender = alerting.NewLogSender(l)
		if cfg.TelegramConfig.Enabled() {
			sender = telegram.NewClient(cfg.TelegramConfig.BotToken, cfg.TelegramConfig.ChatId, l)
		}
		dispatcher := alerting.NewDispatcher(app.eventBus, sender, "fund-settler ("+cfg.Network.String()+")", app.sink, l)
		dispatcher.Start(ctx)
		defer func() {
			cancel()
			dispatcher.Wait()
			app.sink.Flush()
		}()

		var result interface{}
		switch args[0] {
		case "step1":
			result, err = app.pipeline.RunStep1(ctx)
		case "step2":
			result, err = app.pipeline.RunStep2(ctx)
		case "step3":
			result, err = app.pipeline.RunStep3(ctx)
		case "reset-stuck-funds":
			var txId string
			txId, err = app.pipeline.ResetStuckDistribution(ctx)
			result = map[string]string{"txId": txId}
		case "fee-balance":
			result, err = app.pipeline.CheckFeeBalance(ctx)
		default:
			return fmt.Errorf("unknown step '%s'", args[0])
		}
		if err != nil {
			l.Sugar().Errorw("Manual trigger failed", zap.String("step", args[0]), zap.Error(err))
			return errors.Wrapf(err, "%s failed", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}
