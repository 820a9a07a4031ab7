package dto

// PlanDTO describes one service tier to the presentation layer
type PlanDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         uint64   `json:"price"`
	CampaignQuota int      `json:"campaign_quota"`
	MaxMessages   int      `json:"max_messages"`
	Features      []string `json:"features"`
}

// ListPlansResponse represents the plan catalog response
type ListPlansResponse struct {
	Message string    `json:"message"`
	Plans   []PlanDTO `json:"plans"`
}
