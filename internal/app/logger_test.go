package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(logger.Replace(zap.NewNop()))

	require.NoError(t, ConfigureLogging("debug", "console"))
	require.True(t, logger.Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, ConfigureLogging("", ""))
	require.False(t, logger.Logger().Core().Enabled(zap.DebugLevel))
}
