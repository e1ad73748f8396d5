package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasformation/funnel-engine/internal/models"
)

func TestAttributeCampaigns(t *testing.T) {
	records := []models.LedgerRecord{
		{UTMCampaign: "spring_promo", UTMSource: "facebook", UTMMedium: "cpc", Status: models.StatusPaid, Amount: 1000},
		{UTMCampaign: "spring_promo", UTMSource: "facebook", UTMMedium: "cpc", Status: models.StatusPending},
		{UTMCampaign: "spring_promo", UTMSource: "google", UTMMedium: "cpc", Status: models.StatusPaid, Amount: 500},
		{UTMCampaign: "autumn_promo", UTMSource: "google", UTMMedium: "cpc", Status: models.StatusPaid, Amount: 200},
	}

	out := AttributeCampaigns(records)
	require.Len(t, out, 2)

	// Ordered by paid revenue descending.
	spring := out[0]
	assert.Equal(t, "spring_promo", spring.Campaign)
	assert.Equal(t, 3, spring.Count)
	assert.Equal(t, 2, spring.PaidCount)
	assert.Equal(t, 1500.0, spring.PaidRevenue)
	assert.Equal(t, "autumn_promo", out[1].Campaign)

	// Sub-groups ordered by paid count descending, key ascending on ties.
	require.Len(t, spring.Sources, 2)
	assert.Equal(t, "facebook / cpc", spring.Sources[0].Key)
	assert.Equal(t, 2, spring.Sources[0].Count)
	assert.Equal(t, 1, spring.Sources[0].PaidCount)
	assert.Equal(t, "google / cpc", spring.Sources[1].Key)
}

func TestAttributeCampaigns_OrganicBucket(t *testing.T) {
	records := []models.LedgerRecord{
		{UTMCampaign: "", Status: models.StatusPaid, Amount: 100},
		{UTMCampaign: "undefined", Status: models.StatusPending},
	}

	out := AttributeCampaigns(records)
	require.Len(t, out, 1, "missing and undefined campaigns merge into one bucket")
	assert.Equal(t, models.OrganicCampaign, out[0].Campaign)
	assert.Equal(t, 2, out[0].Count)
	assert.Equal(t, 1, out[0].PaidCount)
	assert.Equal(t, 100.0, out[0].PaidRevenue)

	require.NotEmpty(t, out[0].Sources)
	assert.Equal(t, "unknown / unknown", out[0].Sources[0].Key)
}

func TestAttributeCampaigns_Empty(t *testing.T) {
	assert.Empty(t, AttributeCampaigns(nil))
}
