// Package businessflow contains the campaign orchestration flows: the plan
// catalog, voter list ingestion, payment verification, the campaign wizard
// state machine, and the live console.
package businessflow

import (
	"github.com/voteflow/voteflow/models"
)

// plans is the static service catalog. Prices are in minor currency units.
var plans = []models.Plan{
	{
		ID:            "starter",
		Name:          "Starter",
		Price:         99900,
		CampaignQuota: 1,
		MaxMessages:   500,
		Features: []string{
			"1 campaign",
			"Up to 500 messages",
			"Scan and spreadsheet ingestion",
			"Live delivery console",
		},
	},
	{
		ID:            "growth",
		Name:          "Growth",
		Price:         299900,
		CampaignQuota: 3,
		MaxMessages:   2000,
		Features: []string{
			"3 campaigns",
			"Up to 2000 messages per campaign",
			"Scan and spreadsheet ingestion",
			"Live delivery console",
			"Priority extraction",
		},
	},
	{
		ID:            "enterprise",
		Name:          "Enterprise",
		Price:         999900,
		CampaignQuota: 10,
		MaxMessages:   10000,
		Features: []string{
			"10 campaigns",
			"Up to 10000 messages per campaign",
			"Scan and spreadsheet ingestion",
			"Live delivery console",
			"Priority extraction",
			"Dedicated support",
		},
	},
}

// ListPlans returns the catalog in display order. The returned slice is a
// copy the caller may hold.
func ListPlans() []models.Plan {
	out := make([]models.Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID resolves a catalog entry. Returns ErrPlanNotFound for unknown IDs.
func PlanByID(id string) (*models.Plan, error) {
	for i := range plans {
		if plans[i].ID == id {
			p := plans[i]
			return &p, nil
		}
	}
	return nil, NewBusinessError("PLAN_NOT_FOUND", "unknown plan: "+id, ErrPlanNotFound)
}
