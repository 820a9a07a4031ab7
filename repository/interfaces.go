// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/voteflow/voteflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// QuotaRecordRepository defines operations for operator quota records
type QuotaRecordRepository interface {
	Repository[models.QuotaRecord, models.QuotaRecordFilter]
	ByOperator(ctx context.Context, operatorID string) (*models.QuotaRecord, error)
	Update(ctx context.Context, record *models.QuotaRecord) error
}

// CampaignRepository defines operations for launched campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByCampaignID(ctx context.Context, campaignID string) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	ListByOperator(ctx context.Context, operatorID string, limit, offset int) ([]*models.Campaign, error)
}
