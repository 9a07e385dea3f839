//go:build linux

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/vfio-probe/internal/config"
)

func TestOutputFlagReachesConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"groups", "--sysfs", t.TempDir(), "-o", "yaml", "--quiet"})
	require.NoError(t, rootCmd.Execute())

	cfg, err := config.Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, "yaml", newContext(cfg).OutputFormat)
}
