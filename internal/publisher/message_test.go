package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nepal_jobs/internal/domain"
)

func TestJobMessage_JSON(t *testing.T) {
	posted := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	posting := &domain.JobPosting{
		ID:         "9f1c",
		Source:     domain.PortalKumariJob,
		SourceID:   "7101",
		Title:      "Accountant",
		PostedDate: &posted,
		ScrapedAt:  time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}

	msg := newJobMessage(posting)
	assert.Equal(t, ActionCreated, msg.Action)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Minute)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "created", decoded["action"])

	p := decoded["posting"].(map[string]any)
	assert.Equal(t, "kumarijob", p["source"])
	assert.Equal(t, "7101", p["source_id"])
	assert.Equal(t, "2025-03-10T00:00:00Z", p["posted_date"])
	assert.NotContains(t, p, "salary")
}
