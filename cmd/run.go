package cmd

import (
	"context"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/internal/tracer"
	"github.com/hedgefund-labs/fund-settler/internal/version"
	"github.com/hedgefund-labs/fund-settler/pkg/alerting"
	"github.com/hedgefund-labs/fund-settler/pkg/clients/telegram"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/prometheus"
	"github.com/hedgefund-labs/fund-settler/pkg/rpcServer"
	"github.com/hedgefund-labs/fund-settler/pkg/runtime"
	"github.com/hedgefund-labs/fund-settler/pkg/scheduler"
	"github.com/hedgefund-labs/fund-settler/pkg/settlement"
	"github.com/hedgefund-labs/fund-settler/pkg/shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the settlement scheduler and the http server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		l.Sugar().Infow("fund-settler run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("network", cfg.Network.String()),
		)

		tracer.StartTracer(cfg.DataDogConfig.TracingConfig.Enabled, cfg.Network)
		defer tracer.StopTracer(cfg.DataDogConfig.TracingConfig.Enabled)

		app, err := buildSettlerApp(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup settlement pipeline", zap.Error(err))
		}

		rt := runtime.NewSettlerRuntime(app.grm, cfg, l)
		if err := rt.ValidateAndUpdateVersion(version.GetVersion()); err != nil {
			l.Sugar().Fatalw("Failed to validate version", zap.Error(err))
		}

		var sender alerting.Sender = alerting.NewLogSender(l)
		if cfg.TelegramConfig.Enabled() {
			sender = telegram.NewClient(cfg.TelegramConfig.BotToken, cfg.TelegramConfig.ChatId, l)
		}
		dispatcher := alerting.NewDispatcher(app.eventBus, sender, "fund-settler ("+cfg.Network.String()+")", app.sink, l)
		// alerts raised by steps winding down are delivered before the dispatcher stops
		dispatchCtx, stopDispatch := context.WithCancel(context.Background())
		defer stopDispatch()
		dispatcher.Start(dispatchCtx)

		if phase, err := app.pipeline.RecoverInterruptedStep(ctx); err != nil {
			l.Sugar().Fatalw("Failed to recover phase marker", zap.Error(err))
		} else {
			l.Sugar().Infow("Pipeline phase at startup", zap.String("phase", phase.String()))
		}

		if cfg.PrometheusConfig.Enabled {
			prometheus.StartPrometheusServer(ctx, cfg.PrometheusConfig.Port, l)
		}

		rpc := rpcServer.NewRpcServer(app.pipeline, app.store, rt, cfg, app.sink, l)
		if _, err := rpc.Start(ctx); err != nil {
			l.Sugar().Fatalw("Failed to start http server", zap.Error(err))
		}

		sched := scheduler.NewScheduler(l)
		if cfg.ScheduleConfig.Enabled {
			addSettlementJobs(sched, app.pipeline, &cfg.ScheduleConfig)
			sched.Start(ctx)
		} else {
			l.Sugar().Infow("Scheduling disabled, steps only run when triggered")
		}

		l.Sugar().Info("Started fund-settler")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			cancel()
			sched.Wait()
			stopDispatch()
			dispatcher.Wait()
			app.sink.Flush()
		}, time.Second*30, l)
	},
}

func stepJob(name string, interval time.Duration, run func(ctx context.Context) (*settlement.StepResult, error)) *scheduler.Job {
	return &scheduler.Job{
		Name:     name,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := run(ctx)
			return err
		},
	}
}

func addSettlementJobs(sched *scheduler.Scheduler, p *settlement.Pipeline, cfg *config.ScheduleConfig) {
	sched.Add(stepJob("step1", cfg.Step1Interval, p.RunStep1))
	sched.Add(stepJob("step2", cfg.Step2Interval, p.RunStep2))
	sched.Add(stepJob("step3", cfg.Step3Interval, p.RunStep3))
	sched.Add(&scheduler.Job{
		Name:       "fee-balance",
		Interval:   cfg.FeeCheckInterval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := p.CheckFeeBalance(ctx)
			return err
		},
	})
}
