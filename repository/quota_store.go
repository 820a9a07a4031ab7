package repository

import (
	"context"

	"github.com/voteflow/voteflow/models"
	"gorm.io/gorm"
)

// GormQuotaStore persists operator quota records through the quota record
// repository. Mutate runs its read-modify-write as a single transaction so a
// verification never observes a half-updated record.
type GormQuotaStore struct {
	repo QuotaRecordRepository
	db   *gorm.DB
}

// NewGormQuotaStore creates a gorm-backed quota store.
func NewGormQuotaStore(repo QuotaRecordRepository, db *gorm.DB) *GormQuotaStore {
	return &GormQuotaStore{repo: repo, db: db}
}

// Get returns the operator's quota record, nil when none exists.
func (s *GormQuotaStore) Get(ctx context.Context, operatorID string) (*models.QuotaRecord, error) {
	return s.repo.ByOperator(ctx, operatorID)
}

// Mutate applies fn to the operator's current record (nil when absent) and
// persists the result. A nil result from fn leaves the store untouched.
func (s *GormQuotaStore) Mutate(ctx context.Context, operatorID string, fn func(current *models.QuotaRecord) (*models.QuotaRecord, error)) (*models.QuotaRecord, error) {
	var out *models.QuotaRecord

	err := WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		current, err := s.repo.ByOperator(txCtx, operatorID)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			out = current
			return nil
		}

		next.OperatorID = operatorID
		if current != nil {
			// Wholesale replacement keeps the row, not the old values.
			next.ID = current.ID
			next.CreatedAt = current.CreatedAt
			if err := s.repo.Update(txCtx, next); err != nil {
				return err
			}
		} else {
			if err := s.repo.Save(txCtx, next); err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
