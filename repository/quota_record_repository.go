package repository

import (
	"context"
	"fmt"

	"github.com/voteflow/voteflow/models"
	"gorm.io/gorm"
)

// QuotaRecordRepositoryImpl implements QuotaRecordRepository interface.
type QuotaRecordRepositoryImpl struct {
	*BaseRepository[models.QuotaRecord, models.QuotaRecordFilter]
}

// NewQuotaRecordRepository creates a new quota record repository.
func NewQuotaRecordRepository(db *gorm.DB) QuotaRecordRepository {
	return &QuotaRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QuotaRecord, models.QuotaRecordFilter](db),
	}
}

// ByOperator retrieves the quota record for an operator, nil when none exists.
func (r *QuotaRecordRepositoryImpl) ByOperator(ctx context.Context, operatorID string) (*models.QuotaRecord, error) {
	rows, err := r.ByFilter(ctx, models.QuotaRecordFilter{OperatorID: &operatorID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update persists changes to an existing quota record.
func (r *QuotaRecordRepositoryImpl) Update(ctx context.Context, record *models.QuotaRecord) error {
	db := r.getDB(ctx)
	if err := db.Save(record).Error; err != nil {
		return fmt.Errorf("failed to update quota record: %w", err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query.
func (r *QuotaRecordRepositoryImpl) applyFilter(query *gorm.DB, filter models.QuotaRecordFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.OperatorID != nil {
		query = query.Where("operator_id = ?", *filter.OperatorID)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	return query
}

// ByFilter retrieves quota records based on filter criteria.
func (r *QuotaRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.QuotaRecordFilter, orderBy string, limit, offset int) ([]*models.QuotaRecord, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.QuotaRecord{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.QuotaRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of quota records matching filter.
func (r *QuotaRecordRepositoryImpl) Count(ctx context.Context, filter models.QuotaRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.QuotaRecord{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any quota records match the filter.
func (r *QuotaRecordRepositoryImpl) Exists(ctx context.Context, filter models.QuotaRecordFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
