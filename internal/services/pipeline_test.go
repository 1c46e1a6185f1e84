package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// cannedGenerator decodes the same body for every request.
type cannedGenerator struct {
	body string
}

func (g cannedGenerator) GenerateJSON(_ context.Context, _ ai.GenerationRequest, _ ai.GenerateOptions, out any) error {
	return json.Unmarshal([]byte(g.body), out)
}

func TestEmailsSkipBlankWithoutStageDrift(t *testing.T) {
	gen := cannedGenerator{body: `[
		{"subject":"Meet it","body":"b1"},
		{"subject":"  ","body":""},
		{"subject":"Why","body":"b2"},
		{"subject":"Buy","body":"b3"}
	]`}
	p := NewAssetPipeline(gen, newFakeAssetStore(), 1, 1024, zap.NewNop())
	src := &SourceContent{Title: "Trail Runner 2"}
	cfg := GenerateCampaignConfig{EmailCount: 3, Goal: "sell", Tone: "casual"}

	assets, err := p.emails(context.Background(), uuid.New(), src, cfg)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	var (
		subjects  []string
		stages    []string
		sequences []int
	)
	for _, a := range assets {
		var e EmailAsset
		require.NoError(t, json.Unmarshal([]byte(a.Content), &e))
		subjects = append(subjects, e.Subject)
		stages = append(stages, e.Stage)
		sequences = append(sequences, e.Sequence)
	}
	assert.Equal(t, []string{"Meet it", "Why", "Buy"}, subjects)
	assert.Equal(t, []int{1, 2, 3}, sequences)
	assert.Equal(t, []string{EmailStageAwareness, EmailStageConsideration, EmailStageConversion}, stages)
}
