package transaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/types"
)

var ErrInvalidScan = apperr.New(apperr.CodeValidation, "invalid transaction query")

var scannableColumns = []string{
	"id", "offer_id", "client_id", "provider_id", "status", "flow", "currency", "amount",
	"payment_intent_id", "payment_method_id", "total_client_pays_cents", "provider_receives_cents",
	"platform_commission_cents", "escrow_end_time", "escrow_manual_release", "created_at", "updated_at",
}

type ScanTransactionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanTransactionsResponse struct {
	Items []*models.Transaction `json:"items"`
	Total int64                 `json:"total"`
}

// Scan implements paginated admin listing with filters.
func (s *Store) Scan(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidScan)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.Size > 200 {
		req.Size = 200
	}
	if req.From < 0 {
		req.From = 0
	}
	if err := types.ValidateFilters(req.Filters, scannableColumns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScan, err)
	}
	if req.SortBy != "" && !lo.Contains(scannableColumns, req.SortBy) {
		return nil, fmt.Errorf("%w: unsupported sort field %q", ErrInvalidScan, req.SortBy)
	}

	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []*models.Transaction
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{
		Column: clause.Column{Name: sortBy},
		Desc:   !strings.EqualFold(req.SortOrder, "asc"),
	}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return &ScanTransactionsResponse{Items: rows, Total: total}, nil
}
