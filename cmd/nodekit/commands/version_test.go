package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	cmd := Version()

	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
	assert.Equal(t, "Print version information", cmd.Short)
}

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()

	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "abc123", commit)
	assert.Equal(t, "2026-01-01", date)
}

func TestVersion_Output(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()
	SetVersionInfo("test-version", "test-commit", "test-date")

	cmd := Version()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "nodekit test-version")
	assert.Contains(t, buf.String(), "commit: test-commit")
	assert.Contains(t, buf.String(), "built:  test-date")
}
