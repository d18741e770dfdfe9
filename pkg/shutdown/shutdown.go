package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a signal arrives or done is closed, runs the
// callback, then waits up to timeout for in-flight work before returning.
func ListenForShutdown(sig chan os.Signal, done chan bool, callback func(), timeout time.Duration, l *zap.Logger) {
	select {
	case s := <-sig:
		l.Sugar().Infow("Received shutdown signal", zap.String("signal", s.String()))
	case <-done:
		l.Sugar().Info("Shutdown requested")
	}

	finished := make(chan struct{})
	go func() {
		callback()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(timeout):
		l.Sugar().Warnw("Timed out waiting for shutdown callback", zap.Duration("timeout", timeout))
	}
}
