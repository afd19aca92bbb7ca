package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPprofServerStartAndShutdown(t *testing.T) {
	t.Parallel()

	server, err := startPprofServer(context.Background(), 0, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, server.srv)

	require.NoError(t, server.srv.Shutdown(context.Background()))
}
