package tracer

import (
	"github.com/hedgefund-labs/fund-settler/internal/config"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/mocktracer"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const ServiceName = "fund-settler"

// StartTracer initializes the DataDog tracer
// If enabled is false, it starts a mock tracer instead
func StartTracer(enabled bool, network config.NetworkName) {
	if !enabled {
		mocktracer.Start()
		return
	}
	ddTracer.Start(
		ddTracer.WithEnv(network.String()),
		ddTracer.WithServiceName(ServiceName),
		ddTracer.WithGlobalServiceName(true),
		ddTracer.WithDebugMode(false),
		ddTracer.WithLogStartup(false),
	)
}

func StopTracer(enabled bool) {
	if enabled {
		ddTracer.Stop()
	}
}
