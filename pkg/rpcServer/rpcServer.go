// Package rpcServer exposes the manual trigger surface: health, snapshot listing and on-demand
// execution of settlement steps.
package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics"
	"github.com/hedgefund-labs/fund-settler/pkg/phaseMarker"
	"github.com/hedgefund-labs/fund-settler/pkg/runtime"
	"github.com/hedgefund-labs/fund-settler/pkg/settlement"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Pipeline is the part of the settlement pipeline operators can drive over http.
type Pipeline interface {
	RunStep1(ctx context.Context) (*settlement.StepResult, error)
	RunStep2(ctx context.Context) (*settlement.StepResult, error)
	RunStep3(ctx context.Context) (*settlement.StepResult, error)
	ResetStuckDistribution(ctx context.Context) (string, error)
	CheckFeeBalance(ctx context.Context) (*settlement.FeeBalance, error)
	GetPhase(ctx context.Context) (phaseMarker.Phase, error)
	SetPhase(ctx context.Context, phase phaseMarker.Phase) error
}

type VersionHistory interface {
	GetRecentlyLaunchedVersion() (*runtime.SettlerVersions, error)
}

type RpcServer struct {
	pipeline     Pipeline
	store        snapshotStore.SnapshotStore
	versions     VersionHistory
	globalConfig *config.Config
	metricsSink  *metrics.MetricsSink
	logger       *zap.Logger

	now func() time.Time
}

func NewRpcServer(
	p Pipeline,
	store snapshotStore.SnapshotStore,
	versions VersionHistory,
	gc *config.Config,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *RpcServer {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &RpcServer{
		pipeline:     p,
		store:        store,
		versions:     versions,
		globalConfig: gc,
		metricsSink:  ms,
		logger:       l,
		now:          time.Now,
	}
}

// Handler builds the router with CORS applied.
func (rpc *RpcServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(rpc.requestLogger)

	r.Get("/about", rpc.About)

	r.Route("/snapshots", func(sr chi.Router) {
		sr.Get("/health", rpc.Health)

		sr.Group(func(admin chi.Router) {
			admin.Use(rpc.requireAdminSecret)
			admin.Get("/older-snapshots", rpc.ListOlderSnapshots)
			admin.Get("/phase", rpc.GetPhase)
			admin.Post("/phase", rpc.SetPhase)
			admin.Get("/fee-balance", rpc.GetFeeBalance)
			admin.Get("/trigger-step-1", rpc.triggerStep(settlement.Step_Unlock, rpc.pipeline.RunStep1))
			admin.Get("/trigger-step-2", rpc.triggerStep(settlement.Step_Unstake, rpc.pipeline.RunStep2))
			admin.Get("/trigger-step-3", rpc.triggerStep(settlement.Step_Distribute, rpc.pipeline.RunStep3))
			admin.Get("/reset-stuck-funds", rpc.ResetStuckFunds)
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins: rpc.globalConfig.RpcConfig.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

// Start serves http until ctx is cancelled.
func (rpc *RpcServer) Start(ctx context.Context) (*http.Server, error) {
	port := rpc.globalConfig.RpcConfig.HttpPort
	if port <= 0 {
		return nil, fmt.Errorf("invalid http port %d", port)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           rpc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		rpc.logger.Sugar().Infow("Starting http server", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpc.logger.Sugar().Errorw("Http server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rpc.logger.Sugar().Errorw("Failed to shut down http server", zap.Error(err))
		}
	}()
	return server, nil
}
