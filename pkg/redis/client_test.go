package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/govlens/pkg/config"
)

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient(context.Background(), zaptest.NewLogger(t), config.RedisConfig{Host: "127.0.0.1", Port: "1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "127.0.0.1:1")
}
