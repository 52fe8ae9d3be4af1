package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/provider"
)

func TestCleanup_DryRunThenDelete(t *testing.T) {
	p := useMemory(t)
	ctx := context.Background()
	co := webNodes(1)
	co.AutoSecurityGroup = true
	view := createJSON(t, co)
	require.Len(t, view.Good, 1)
	_, err := p.DeleteInstance(ctx, view.Good[0].ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Cleanup(ctx, memoryOpts(OutputJSON), &buf, "web", true))
	var got cleanupView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.DryRun)
	require.Len(t, got.Orphans, 1)
	assert.Equal(t, provider.KindSecurityGroup, got.Orphans[0].Kind)

	buf.Reset()
	require.NoError(t, Cleanup(ctx, memoryOpts(OutputTable), &buf, "web", false))
	assert.Contains(t, buf.String(), "security group")
	assert.Contains(t, buf.String(), "Deleted 1 resources")

	buf.Reset()
	require.NoError(t, Cleanup(ctx, memoryOpts(OutputTable), &buf, "web", false))
	assert.Contains(t, buf.String(), "No resources found.")
}

func TestCleanup_PartialFailureStillRenders(t *testing.T) {
	p := useMemory(t)
	ctx := context.Background()
	co := webNodes(1)
	co.AutoSecurityGroup = true
	view := createJSON(t, co)
	_, err := p.DeleteInstance(ctx, view.Good[0].ID)
	require.NoError(t, err)
	p.FailAlways("DeleteSecurityGroup", errors.New("locked"))

	var buf bytes.Buffer
	err = Cleanup(ctx, memoryOpts(OutputTable), &buf, "web", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup failed")
	assert.Contains(t, buf.String(), "security group")
}

func TestCleanup_RequiresGroup(t *testing.T) {
	useMemory(t)

	err := Cleanup(context.Background(), memoryOpts(OutputTable), new(bytes.Buffer), "", true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--group")
}
