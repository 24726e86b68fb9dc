package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDisabledOutsideProduction(t *testing.T) {
	client, err := NewClient(context.Background(), "development")
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	// Disabled clients must not panic on any recorder
	client.RecordAPIRequest("/health", 200, time.Millisecond)
	client.RecordGenerationRun(500, time.Second, true)
	client.RecordFallbackInstruments(2)
	client.RecordCorpusScan(3, 1, 1200)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestDimensions(t *testing.T) {
	client := &Client{environment: "staging"}

	dims := client.dimensions("Endpoint", "/api/v1/generations", "dangling")
	require.Len(t, dims, 2)
	assert.Equal(t, "Environment", aws.ToString(dims[0].Name))
	assert.Equal(t, "staging", aws.ToString(dims[0].Value))
	assert.Equal(t, "Endpoint", aws.ToString(dims[1].Name))
}

func TestBoolToString(t *testing.T) {
	assert.Equal(t, "true", boolToString(true))
	assert.Equal(t, "false", boolToString(false))
}

func TestSentryMetricsWithoutHub(t *testing.T) {
	m := NewSentryMetrics()
	ctx := context.Background()
	m.RecordAPIRequest(ctx, "/health", 500, time.Millisecond)
	m.RecordGenerationRun(ctx, "amber_tide.mid", 500, time.Second, true)
	m.RecordTrainingRun(ctx, 1000, 0.42, time.Minute)
}
