package analytics

import (
	"sort"
	"strings"

	"github.com/atlasformation/funnel-engine/internal/models"
)

// AttributeCampaigns rolls records up hierarchically: campaign at the top,
// then (source, medium) pairs, content variants and terms inside each
// campaign. Paid and unpaid records both count; only paid ones add
// revenue. Campaigns come back ordered by paid revenue descending,
// sub-groups by paid count descending.
func AttributeCampaigns(records []models.LedgerRecord) []models.CampaignAttribution {
	type groupMaps struct {
		attribution *models.CampaignAttribution
		sources     map[string]*models.AttributionGroup
		contents    map[string]*models.AttributionGroup
		terms       map[string]*models.AttributionGroup
	}

	campaigns := make(map[string]*groupMaps)
	for _, r := range records {
		name := campaignBucket(r.UTMCampaign)
		g, ok := campaigns[name]
		if !ok {
			g = &groupMaps{
				attribution: &models.CampaignAttribution{Campaign: name},
				sources:     make(map[string]*models.AttributionGroup),
				contents:    make(map[string]*models.AttributionGroup),
				terms:       make(map[string]*models.AttributionGroup),
			}
			campaigns[name] = g
		}

		paid := r.IsPaid()
		revenue := 0.0
		if paid {
			revenue = r.RevenueAmount()
		}

		g.attribution.Count++
		if paid {
			g.attribution.PaidCount++
			g.attribution.PaidRevenue += revenue
		}

		tally(g.sources, sourceMediumKey(r.UTMSource, r.UTMMedium), paid, revenue)
		tally(g.contents, subKey(r.UTMContent), paid, revenue)
		tally(g.terms, subKey(r.UTMTerm), paid, revenue)
	}

	out := make([]models.CampaignAttribution, 0, len(campaigns))
	for _, g := range campaigns {
		g.attribution.Sources = sortedGroups(g.sources)
		g.attribution.Contents = sortedGroups(g.contents)
		g.attribution.Terms = sortedGroups(g.terms)
		out = append(out, *g.attribution)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidRevenue != out[j].PaidRevenue {
			return out[i].PaidRevenue > out[j].PaidRevenue
		}
		return out[i].Campaign < out[j].Campaign
	})
	return out
}

// campaignBucket folds missing campaigns and the literal "undefined" the
// tracking pixel emits into the Organic/Direct bucket.
func campaignBucket(campaign string) string {
	c := strings.TrimSpace(campaign)
	if c == "" || strings.EqualFold(c, "undefined") {
		return models.OrganicCampaign
	}
	return c
}

func sourceMediumKey(source, medium string) string {
	return subKey(source) + " / " + subKey(medium)
}

func subKey(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "undefined") {
		return "unknown"
	}
	return v
}

func tally(groups map[string]*models.AttributionGroup, key string, paid bool, revenue float64) {
	g, ok := groups[key]
	if !ok {
		g = &models.AttributionGroup{Key: key}
		groups[key] = g
	}
	g.Count++
	if paid {
		g.PaidCount++
		g.PaidRevenue += revenue
	}
}

func sortedGroups(groups map[string]*models.AttributionGroup) []models.AttributionGroup {
	out := make([]models.AttributionGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidCount != out[j].PaidCount {
			return out[i].PaidCount > out[j].PaidCount
		}
		return out[i].Key < out[j].Key
	})
	return out
}
