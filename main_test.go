package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
)

func TestFilterSensitiveHeaders(t *testing.T) {
	filtered := filterSensitiveHeaders(map[string]string{
		"authorization": "Bearer abc",
		"content-type":  "application/json",
	})
	assert.Equal(t, "[REDACTED]", filtered["authorization"])
	assert.Equal(t, "application/json", filtered["content-type"])
}

func TestApplyFlags(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range pipelineFlags() {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"--weights", "w.model", "--number", "3", "--optimizer"}))

	cfg := &config.Config{CheckpointPath: "default.model", OutputCount: 1, Cells: 256}
	applyFlags(cli.NewContext(cli.NewApp(), set, nil), cfg)

	assert.Equal(t, "w.model", cfg.CheckpointPath)
	assert.Equal(t, 3, cfg.OutputCount)
	assert.True(t, cfg.MakeNotation)
	assert.Equal(t, 256, cfg.Cells)
}

func TestRunServerShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, ln) }()

	url := "http://" + ln.Addr().String()
	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}
