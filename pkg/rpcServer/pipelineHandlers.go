package rpcServer

import (
	"context"
	"net/http"

	"github.com/hedgefund-labs/fund-settler/pkg/phaseMarker"
	"github.com/hedgefund-labs/fund-settler/pkg/settlement"
	"go.uber.org/zap"
)

type stepFunc func(ctx context.Context) (*settlement.StepResult, error)

// triggerStep runs a step on demand. The step runs to completion even if the client goes away.
func (rpc *RpcServer) triggerStep(step settlement.Step, run stepFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rpc.logger.Sugar().Infow("Triggering step manually", zap.String("step", step.String()))

		res, err := run(context.WithoutCancel(r.Context()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if res == nil {
			writeData(w, "Step is not due, nothing was done", nil)
			return
		}
		writeData(w, "Step completed", res)
	}
}

func (rpc *RpcServer) ResetStuckFunds(w http.ResponseWriter, r *http.Request) {
	txId, err := rpc.pipeline.ResetStuckDistribution(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, "Distribution closed", map[string]string{"txId": txId})
}

func (rpc *RpcServer) GetPhase(w http.ResponseWriter, r *http.Request) {
	phase, err := rpc.pipeline.GetPhase(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, "", map[string]string{"phase": phase.String()})
}

// SetPhase overwrites the phase marker with the phase query param.
func (rpc *RpcServer) SetPhase(w http.ResponseWriter, r *http.Request) {
	phase, err := phaseMarker.ParsePhase(r.URL.Query().Get("phase"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rpc.pipeline.SetPhase(r.Context(), phase); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, "Phase updated", map[string]string{"phase": phase.String()})
}

func (rpc *RpcServer) GetFeeBalance(w http.ResponseWriter, r *http.Request) {
	fb, err := rpc.pipeline.CheckFeeBalance(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, "", fb)
}
