package rpcServer

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hedgefund-labs/fund-settler/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

const (
	requestIdHeader   = "X-Request-Id"
	adminSecretHeader = "X-Admin-Secret"
	adminSecretParam  = "secret"
)

func (rpc *RpcServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestId := r.Header.Get(requestIdHeader)
		if requestId == "" {
			requestId = uuid.New().String()
		}
		w.Header().Set(requestIdHeader, requestId)

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "pattern", Value: pattern},
			{Name: "status_code", Value: strconv.Itoa(status)},
		}
		_ = rpc.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = rpc.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)

		rpc.logger.Sugar().Debugw("Handled request",
			zap.String("requestId", requestId),
			zap.String("method", r.Method),
			zap.String("pattern", pattern),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// requireAdminSecret rejects requests without the admin secret. A missing secret is a bad request,
// an unconfigured server secret an internal error and a mismatch unauthorized.
func (rpc *RpcServer) requireAdminSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get(adminSecretHeader)
		if secret == "" {
			secret = r.URL.Query().Get(adminSecretParam)
		}
		if secret == "" {
			writeError(w, http.StatusBadRequest, "Secret is required")
			return
		}
		expected := rpc.globalConfig.RpcConfig.AdminSecret
		if expected == "" {
			rpc.logger.Sugar().Errorw("Admin request rejected, admin secret is not configured")
			writeError(w, http.StatusInternalServerError, "Admin secret is not configured")
			return
		}
		if subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
			writeError(w, http.StatusUnauthorized, "Invalid secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}
