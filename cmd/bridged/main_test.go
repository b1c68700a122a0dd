package main

import (
	"context"
	"io"
	"testing"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Watcher.Interval = 10 * time.Millisecond
	cfg.Networks = []config.NetworkConfig{
		{Network: "ETHEREUM", ChainType: "MOCK"},
		{Network: "BSC", ChainType: "MOCK"},
	}
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, quietLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestRunRejectsUnknownStorageDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "cassandra"

	err := run(context.Background(), cfg, quietLogger())
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidConfig), "%v", err)
}
