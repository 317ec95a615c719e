package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), Options{ServiceName: "bytegate"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Same(t, before, otel.GetTracerProvider())
}

func TestSetupInstallsProviders(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "bytegate-test",
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
	})
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())
	assert.IsType(t, &sdklog.LoggerProvider{}, global.GetLoggerProvider())

	// Nothing listens on the endpoint, so the final flush may fail; shutdown
	// must still return within the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
