package dto

// CountersDTO is the live progress snapshot for a running campaign
type CountersDTO struct {
	Total    int     `json:"total"`
	Sent     int     `json:"sent"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	Progress float64 `json:"progress"`
}

// LogEntryDTO is one visible line of the bounded execution log
type LogEntryDTO struct {
	ID        uint64 `json:"id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
}

// ConsoleSnapshotResponse aggregates telemetry and wizard state for display
type ConsoleSnapshotResponse struct {
	Message         string        `json:"message"`
	ConnectionState string        `json:"connection_state"`
	CampaignID      string        `json:"campaign_id,omitempty"`
	Running         bool          `json:"running"`
	Pairing         bool          `json:"pairing"`
	PairingArtifact string        `json:"pairing_artifact,omitempty"`
	Counters        CountersDTO   `json:"counters"`
	Log             []LogEntryDTO `json:"log"`
	EngineHealthy   bool          `json:"engine_healthy"`
	WizardState     string        `json:"wizard_state,omitempty"`
}

// OpenTelemetryRequest subscribes the console to a campaign's event stream
type OpenTelemetryRequest struct {
	CampaignID string `json:"campaign_id" validate:"required"`
}

// CampaignDTO is one row of the operator's campaign history
type CampaignDTO struct {
	CampaignID  string  `json:"campaign_id"`
	PlanID      string  `json:"plan_id"`
	Recipients  int     `json:"recipients"`
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// ListCampaignsResponse represents the campaign history response
type ListCampaignsResponse struct {
	Message   string        `json:"message"`
	Campaigns []CampaignDTO `json:"campaigns"`
}
