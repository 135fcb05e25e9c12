package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/signalscope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePipelines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultPipelines(t *testing.T) {
	settings := DefaultPipelines()
	require.NoError(t, settings.Validate())
	require.Len(t, settings.Enabled(), 3)

	gk, ok := settings.Get(domain.SourceGoldenKey)
	require.True(t, ok)
	assert.Equal(t, 8, gk.TopN)
	assert.Equal(t, 120, gk.MinBars)
	assert.Equal(t, 5.0, gk.ProfitThreshold)
	assert.Equal(t, -3.0, gk.LossThreshold)
	assert.Equal(t, 7, gk.MaxHoldDays)
	assert.True(t, gk.Excludes(domain.CategoryFund))
	assert.True(t, gk.Excludes(domain.CategoryRights))
	assert.False(t, gk.Excludes(domain.CategoryStock))

	ww, _ := settings.Get(domain.SourceWeeklyWatchlist)
	assert.Equal(t, 10.0, ww.ProfitThreshold)
	assert.Equal(t, -5.0, ww.LossThreshold)
	assert.Equal(t, ProbabilityScaled, ww.Probability)

	bq, _ := settings.Get(domain.SourceBuyQueue)
	assert.False(t, bq.TrackSignals)
	assert.Equal(t, 5, bq.FundTopN)
	assert.False(t, bq.Excludes(domain.CategoryFund))

	assert.Contains(t, settings.Classification.FundKeywords, "etf")
	assert.NotEmpty(t, settings.Classification.RightsSuffixes)
}

func TestLoadPipelines_EmptyPath(t *testing.T) {
	settings, err := LoadPipelines("")
	require.NoError(t, err)
	assert.Len(t, settings.Pipelines, 3)
}

func TestLoadPipelines_Overlay(t *testing.T) {
	path := writePipelines(t, `
classification:
  fund_keywords: ["trust"]
pipelines:
  - source: golden_key
    top_n: 5
    profit_threshold: 6
  - source: buy_queue
    enabled: false
`)

	settings, err := LoadPipelines(path)
	require.NoError(t, err)

	gk, _ := settings.Get(domain.SourceGoldenKey)
	assert.Equal(t, 5, gk.TopN)
	assert.Equal(t, 6.0, gk.ProfitThreshold)
	assert.Equal(t, -3.0, gk.LossThreshold, "omitted keys keep built-in values")
	assert.Equal(t, 120, gk.MinBars)

	assert.Equal(t, []string{"trust"}, settings.Classification.FundKeywords)
	assert.NotEmpty(t, settings.Classification.RightsSuffixes)

	enabled := settings.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, domain.SourceGoldenKey, enabled[0].Source)
	assert.Equal(t, domain.SourceWeeklyWatchlist, enabled[1].Source)
}

func TestLoadPipelines_ClassificationOnly(t *testing.T) {
	path := writePipelines(t, `
classification:
  fund_keywords: ["trust", "etf"]
  rights_suffixes: ["-R"]
  rights_keywords: []
`)

	settings, err := LoadPipelines(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"trust", "etf"}, settings.Classification.FundKeywords)
	assert.Equal(t, []string{"-R"}, settings.Classification.RightsSuffixes)
	assert.Empty(t, settings.Classification.RightsKeywords)
	assert.Len(t, settings.Pipelines, 3, "pipelines keep their built-in values")
}

func TestLoadPipelines_NoClassificationKeepsDefaults(t *testing.T) {
	path := writePipelines(t, "pipelines:\n  - source: golden_key\n    top_n: 4\n")

	settings, err := LoadPipelines(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPipelines().Classification, settings.Classification)
}

func TestLoadPipelines_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown source",
			content: "pipelines:\n  - source: momentum\n",
			wantErr: "unknown source",
		},
		{
			name:    "positive loss threshold",
			content: "pipelines:\n  - source: golden_key\n    loss_threshold: 2\n",
			wantErr: "LossThreshold",
		},
		{
			name:    "top n too large",
			content: "pipelines:\n  - source: weekly_watchlist\n    top_n: 80\n",
			wantErr: "TopN",
		},
		{
			name:    "min hold beyond max hold",
			content: "pipelines:\n  - source: golden_key\n    min_hold_days: 9\n",
			wantErr: "MinHoldDays",
		},
		{
			name:    "bad category",
			content: "pipelines:\n  - source: golden_key\n    exclude_categories: [bonds]\n",
			wantErr: "ExcludeCategories",
		},
		{
			name:    "malformed yaml",
			content: "pipelines: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPipelines(writePipelines(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadPipelines(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
