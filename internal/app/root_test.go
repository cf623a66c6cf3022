package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "c9install", RootCmd.Use)
	assert.NotEmpty(t, RootCmd.Short)
	assert.NotEmpty(t, RootCmd.Long)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	var names []string
	for _, cmd := range RootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, expected := range []string{"install", "reinstall", "status", "arch", "history", "watch", "managers", "selfcheck"} {
		assert.Contains(t, names, expected)
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"dir", "config", "log-level"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if !assert.NotNil(t, flag, "--%s not registered", name) {
			continue
		}
		assert.NotEmpty(t, flag.Usage, "--%s has no usage text", name)
	}
}

func TestRootCmd_BareInvocation(t *testing.T) {
	require.NotNil(t, RootCmd.RunE)
	assert.Equal(t, 2, RootCmd.SuggestionsMinimumDistance)
	assert.True(t, RootCmd.SilenceUsage)
	assert.True(t, RootCmd.SilenceErrors)
	assert.Contains(t, RootCmd.Long, "Quick Start")

	setupWorkspace(t, "")
	out, err := execute(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "c9install install")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	setupWorkspace(t, "")
	_, err := execute(t, "", "instal")
	assert.Error(t, err)
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	setupWorkspace(t, "")
	_, err := execute(t, "", "--log-level", "loud", "managers")
	assert.Error(t, err)
}
