package rpcServer

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/version"
	"github.com/hedgefund-labs/fund-settler/pkg/snapshotStore"
	"go.uber.org/zap"
)

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Health pings the database and answers 503 when it cannot be reached.
func (rpc *RpcServer) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	timestamp := rpc.now().UTC().Format(time.RFC3339)
	if err := rpc.store.Ping(ctx); err != nil {
		rpc.logger.Sugar().Errorw("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, &healthResponse{
			Status:    "error",
			Database:  "disconnected",
			Error:     err.Error(),
			Timestamp: timestamp,
		})
		return
	}
	writeJSON(w, http.StatusOK, &healthResponse{
		Status:    "ok",
		Database:  "connected",
		Timestamp: timestamp,
	})
}

type aboutResponse struct {
	Version        string     `json:"version"`
	Commit         string     `json:"commit"`
	Network        string     `json:"network"`
	LastLaunched   string     `json:"lastLaunchedVersion,omitempty"`
	LastLaunchedAt *time.Time `json:"lastLaunchedAt,omitempty"`
}

func (rpc *RpcServer) About(w http.ResponseWriter, r *http.Request) {
	about := &aboutResponse{
		Version: version.GetVersion(),
		Commit:  version.GetCommit(),
		Network: rpc.globalConfig.Network.String(),
	}
	if rpc.versions != nil {
		last, err := rpc.versions.GetRecentlyLaunchedVersion()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if last != nil {
			about.LastLaunched = last.Version
			about.LastLaunchedAt = last.CreatedAt
		}
	}
	writeData(w, "", about)
}

type snapshotResponse struct {
	Date       time.Time `json:"date"`
	State      string    `json:"state"`
	ClaimNftId *string   `json:"claimNftId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type olderSnapshotsMeta struct {
	BeforeDate     *time.Time `json:"beforeDate"`
	DaysAgo        *int       `json:"daysAgo"`
	ClaimNftId     string     `json:"claimNftId,omitempty"`
	ClaimNftIdNull bool       `json:"claimNftIdNull,omitempty"`
}

// ListOlderSnapshots lists snapshots filtered by beforeDate, daysAgo and claim receipt id. The
// presence of claimNftIdNull, whatever its value, selects snapshots without a claim receipt.
func (rpc *RpcServer) ListOlderSnapshots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := &snapshotStore.ListSnapshotsFilter{}
	meta := &olderSnapshotsMeta{}

	if raw := query.Get("beforeDate"); raw != "" {
		before, err := snapshotStore.ParseSnapshotDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid beforeDate. Use an ISO 8601 timestamp.")
			return
		}
		filter.BeforeDate = &before
		meta.BeforeDate = &before
	}
	if raw := query.Get("daysAgo"); raw != "" {
		daysAgo, err := strconv.Atoi(raw)
		if err != nil || daysAgo < 0 {
			writeError(w, http.StatusBadRequest, "Invalid daysAgo. Provide a non-negative number.")
			return
		}
		filter.DaysAgo = daysAgo
		meta.DaysAgo = &daysAgo
	}
	if query.Has("claimNftIdNull") {
		filter.ClaimNftIdNull = true
		meta.ClaimNftIdNull = true
	} else if claimNftId := query.Get("claimNftId"); claimNftId != "" {
		filter.ClaimNftId = claimNftId
		meta.ClaimNftId = claimNftId
	}

	snapshots, err := rpc.store.ListSnapshots(r.Context(), filter)
	if err != nil {
		rpc.logger.Sugar().Errorw("Failed to list snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch older snapshots")
		return
	}

	data := make([]*snapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		data = append(data, &snapshotResponse{
			Date:       s.Date,
			State:      s.State.String(),
			ClaimNftId: s.ClaimNftId,
			CreatedAt:  s.CreatedAt,
			UpdatedAt:  s.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Older snapshots retrieved successfully",
		"data":    data,
		"meta":    meta,
	})
}
