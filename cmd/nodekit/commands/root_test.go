package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/cmd/nodekit/handlers"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "nodekit", cmd.Use)
	assert.Equal(t, "Manage groups of cloud compute nodes", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{
		"nodes",
		"images",
		"hardware",
		"locations",
		"security-groups",
		"cleanup",
		"version",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestRoot_PersistentFlags(t *testing.T) {
	cmd := Root()

	for _, name := range []string{"config", "provider", "output", "metrics-file", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
	assert.Equal(t, "table", cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestRoot_ImagesWithMemoryProvider(t *testing.T) {
	cmd := Root()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"images", "--provider", "memory", "-o", "json", "--log-level", "error"})

	require.NoError(t, cmd.Execute())

	var images []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &images))
	assert.NotEmpty(t, images)
}

func TestRoot_UnknownProvider(t *testing.T) {
	cmd := Root()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"locations", "--provider", "aws"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestCleanup_Flags(t *testing.T) {
	cmd := Cleanup(&handlers.Options{})

	group := cmd.Flags().Lookup("group")
	require.NotNil(t, group)
	assert.Equal(t, "g", group.Shorthand)
	assert.Equal(t, "false", cmd.Flags().Lookup("dry-run").DefValue)
}

func TestCleanup_RequiresGroupFlag(t *testing.T) {
	cmd := Root()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"cleanup", "--provider", "memory", "--dry-run"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "group")
}
