package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResearchStatus_Terminal(t *testing.T) {
	assert.False(t, ResearchStatusPending.Terminal())
	assert.False(t, ResearchStatusInProgress.Terminal())
	assert.True(t, ResearchStatusCompleted.Terminal())
	assert.True(t, ResearchStatusFailed.Terminal())
}

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Snapshot{Title: "Acme Bank"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Acme Bank"}`, string(data))
}

func TestResearchJob_RoundTrip(t *testing.T) {
	job := ResearchJob{
		ID:       "r1",
		VendorID: "v1",
		Status:   ResearchStatusCompleted,
		WebsiteSnapshot: &Snapshot{
			Title:         "Acme",
			RawBodySample: "<html>",
		},
		ExtractedProfile: &ProfileCandidates{
			Keywords: []string{"payments", "fraud"},
		},
		DeepResearchInsights: map[string]any{"summary": "x"},
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var got ResearchJob
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, job.WebsiteSnapshot.Title, got.WebsiteSnapshot.Title)
	assert.Equal(t, job.ExtractedProfile.Keywords, got.ExtractedProfile.Keywords)
	assert.Equal(t, "x", got.DeepResearchInsights["summary"])
}
