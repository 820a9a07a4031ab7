package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

func TestEngineClientEndpoints(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/campaign/start":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"message":"started","campaign_id":"campaign_abc"}`))
		case "/api/campaign/campaign_abc/stop":
			w.WriteHeader(http.StatusOK)
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewHTTPCampaignEngineService(server.URL, 5*time.Second)
	ctx := context.Background()

	handle, err := client.Start(ctx, StartCampaignRequest{
		Voters:          models.VoterList{{Name: "Asha", Mobile: "9876543210"}},
		MessageTemplate: utils.ToPtr("hello"),
		PlanID:          "starter",
		MaxMessages:     500,
	})
	require.NoError(t, err)
	assert.Equal(t, "campaign_abc", handle.CampaignID)

	require.NoError(t, client.Stop(ctx, "campaign_abc"))
	assert.True(t, client.Health(ctx))

	assert.Equal(t, []string{
		"POST /api/campaign/start",
		"POST /api/campaign/campaign_abc/stop",
		"GET /health",
	}, paths)
}

func TestEngineClientRefusedLaunch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"message":"engine busy"}`))
	}))
	defer server.Close()

	client := NewHTTPCampaignEngineService(server.URL, 5*time.Second)
	_, err := client.Start(context.Background(), StartCampaignRequest{PlanID: "starter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine busy")
}
