package models

// Plan represents one purchasable service tier. Plans are defined at process
// start and never mutated.
type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         uint64   `json:"price"` // minor currency units
	CampaignQuota int      `json:"campaign_quota"`
	MaxMessages   int      `json:"max_messages"` // per-campaign message ceiling
	Features      []string `json:"features"`
}
