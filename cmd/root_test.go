package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"collect", "details", "check", "serve", "rate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "litigio-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCollectCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"input", "output", "details"} {
		flag := collectCmd.Flags().Lookup(flagName)
		require.NotNil(t, flag, "collect should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDetailsCommand_RequiresArgs(t *testing.T) {
	err := detailsCmd.Args(detailsCmd, nil)
	require.Error(t, err)
	assert.NoError(t, detailsCmd.Args(detailsCmd, []string{"0000001-02.2023.8.17.0001"}))
}
