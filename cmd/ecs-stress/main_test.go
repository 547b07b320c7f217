package main

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStressRun(t *testing.T) {
	report, err := stress(zerolog.Nop(), 100*time.Millisecond, 5, 50, 0.1)
	require.NoError(t, err)

	assert.Positive(t, report.TotalUpdates)
	assert.Equal(t, 50, report.Visible+report.Hidden)
	assert.Zero(t, report.PanicCount)
	assert.Equal(t, 3, report.Systems)

	var out strings.Builder
	require.NoError(t, report.Generate(&out))
	assert.Contains(t, out.String(), "# Anchor Stress Test Report")
	assert.Contains(t, out.String(), "**Tracked Anchors:** 5")
}
