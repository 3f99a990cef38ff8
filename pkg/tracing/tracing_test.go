package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledReturnsNoopProvider(t *testing.T) {
	tp, err := Init(&Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestInitStdoutExporter(t *testing.T) {
	tp, err := Init(&Config{
		Enabled:      true,
		ServiceName:  "janusc-test",
		ExporterType: "stdout",
		SamplingRate: 1.0,
	})
	require.NoError(t, err)
	require.NotNil(t, tp)
	defer tp.Shutdown(context.Background())
}

func TestInitUnsupportedExporter(t *testing.T) {
	_, err := Init(&Config{Enabled: true, ExporterType: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestWithSpanRecordsError(t *testing.T) {
	tp, err := Init(&Config{Enabled: false})
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	boom := errors.New("boom")
	err = WithSpan(context.Background(), "resolve", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestAttributeHelpers(t *testing.T) {
	assert.Len(t, RegistryBuildAttributes(3), 1)
	assert.Len(t, ResolutionAttributes("speak", 1, 2), 3)
	assert.Len(t, TableGenAttributes("speak", 4), 2)
	assert.Len(t, DiagnosticAttributes("S1101", 2), 2)
}
