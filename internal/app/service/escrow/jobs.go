package escrow

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/tool"
	"github.com/fatflowers/partypay/pkg/types"
)

// Dispatcher executes one due payout job. The payment service implements it.
type Dispatcher interface {
	RunJob(ctx context.Context, job *models.PayoutJob) error
}

// Enqueue schedules kind for the transaction at runAt. Scheduling the same kind again
// resets the existing row instead of adding a second one.
func Enqueue(ctx context.Context, db *gorm.DB, transactionID string, kind types.PayoutJobKind, runAt time.Time) error {
	job := &models.PayoutJob{
		ID:            tool.GenerateUUIDV7(),
		TransactionID: transactionID,
		Kind:          kind,
		RunAt:         runAt,
		Status:        types.PayoutJobStatusPending,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "transaction_id"}, {Name: "kind"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     types.PayoutJobStatusPending,
			"run_at":     runAt,
			"attempts":   0,
			"last_error": nil,
			"updated_at": time.Now(),
		}),
	}).Create(job).Error
	if err != nil {
		return fmt.Errorf("failed to enqueue %s job for %s: %w", kind, transactionID, err)
	}
	return nil
}

// CancelPending marks every not yet started job of the transaction as failed.
func CancelPending(ctx context.Context, db *gorm.DB, transactionID, reason string) error {
	err := db.WithContext(ctx).Model(&models.PayoutJob{}).
		Where("transaction_id = ? AND status = ?", transactionID, types.PayoutJobStatusPending).
		Updates(map[string]any{
			"status":     types.PayoutJobStatusFailed,
			"last_error": reason,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to cancel jobs for %s: %w", transactionID, err)
	}
	return nil
}

// ListJobs returns the jobs of one transaction, oldest first.
func ListJobs(ctx context.Context, db *gorm.DB, transactionID string) ([]models.PayoutJob, error) {
	var jobs []models.PayoutJob
	if err := db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("created_at asc").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs for %s: %w", transactionID, err)
	}
	return jobs, nil
}
