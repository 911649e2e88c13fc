package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitInstallsProvidersAndEmitsSpans(t *testing.T) {
	var buf bytes.Buffer

	shutdown, err := Init("workspace-test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "unit-span")
}
