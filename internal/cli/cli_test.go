package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/next-action-service/internal/models"
)

func TestParseMeta(t *testing.T) {
	meta, err := parseMeta([]string{"source=web", "query=a=b", " device =mobile"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"source": "web", "query": "a=b", "device": "mobile"}, meta)

	meta, err = parseMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseMeta([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRenderPrediction(t *testing.T) {
	var buf bytes.Buffer
	err := renderPrediction(&buf, models.Prediction{
		CurrentAction:    "open",
		TotalOccurrences: 3,
		Sequences: []models.Sequence{
			{NextAction: "reply", Frequency: 2, Probability: 66.67},
			{NextAction: "archive", Frequency: 1, Probability: 33.33},
		},
	})
	require.NoError(t, err)

	want := "After \"open\" (3 occurrences):\n" +
		"NEXT ACTION  FREQUENCY  PROBABILITY\n" +
		"reply        2          66.67%\n" +
		"archive      1          33.33%\n"
	assert.Equal(t, want, buf.String())
}

func TestRootHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, n := range []string{"serve", "migrate", "track", "predict"} {
		assert.True(t, names[n], n)
	}
}
