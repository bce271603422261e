package statistics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyTransactionCount    StatisticType = "daily_transaction_count"
	StatisticTypeDailyGmv                 StatisticType = "daily_gmv"
	StatisticTypeDailyPlatformCommission  StatisticType = "daily_platform_commission"
	StatisticTypeCumulativeGmv            StatisticType = "cumulative_gmv"
	StatisticTypeTransactionCountByStatus StatisticType = "transaction_count_by_status"
)

var ErrInvalidRequest = apperr.New(apperr.CodeValidation, "invalid statistics request")

// money statistics only count bookings whose payment was captured and not given back
var capturedStatuses = []types.TransactionStatus{
	types.TransactionStatusPaidPendingProviderAcceptance,
	types.TransactionStatusEscrow,
	types.TransactionStatusCompleted,
}

var filterableColumns = []string{"status", "flow", "currency", "provider_id", "client_id", "created_at"}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

func (r *Request) validate() error {
	if r == nil || len(r.DataItems) == 0 {
		return fmt.Errorf("%w: at least one data item is required", ErrInvalidRequest)
	}
	if err := types.ValidateFilters(r.Filters, filterableColumns); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// DataPoint values are cents for money statistics and counts otherwise. Label is the
// currency, or the status for counts by status.
type DataPoint struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type Response struct {
	DataItems map[StatisticType][]DataPoint `json:"data_items"`
}

// Service computes admin revenue statistics over the transaction table.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

// dayExpr formats created_at as YYYY-MM-DD in the connected dialect.
func (s *Service) dayExpr() string {
	if s.db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m-%d', created_at)"
	}
	return "TO_CHAR(created_at, 'YYYY-MM-DD')"
}

func (s *Service) base(ctx context.Context, request *Request) *gorm.DB {
	return s.db.WithContext(ctx).Table("transaction").
		Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(request.Filters)}})
}

func (s *Service) dailyTransactionCount(ctx context.Context, request *Request) ([]DataPoint, error) {
	var results []DataPoint
	day := s.dayExpr()
	err := s.base(ctx, request).
		Select(day + " as date, count(*) as value").
		Group(day).
		Order("date").
		Find(&results).Error
	return results, err
}

func (s *Service) dailySum(ctx context.Context, request *Request, column string) ([]DataPoint, error) {
	var results []DataPoint
	day := s.dayExpr()
	err := s.base(ctx, request).
		Select(fmt.Sprintf("%s as date, currency as label, sum(%s) as value", day, column)).
		Where("status IN ?", capturedStatuses).
		Group(day).
		Group("currency").
		Order("date").
		Order("label").
		Find(&results).Error
	return results, err
}

func (s *Service) cumulativeGmv(ctx context.Context, request *Request) ([]DataPoint, error) {
	daily, err := s.dailySum(ctx, request, "total_client_pays_cents")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	running := map[string]int64{}
	out := make([]DataPoint, 0, len(daily))
	for _, p := range daily {
		running[p.Label] += p.Value
		out = append(out, DataPoint{Date: p.Date, Label: p.Label, Value: running[p.Label]})
	}
	return out, nil
}

func (s *Service) countByStatus(ctx context.Context, request *Request) ([]DataPoint, error) {
	var results []DataPoint
	err := s.base(ctx, request).
		Select("status as label, count(*) as value").
		Group("status").
		Order("label").
		Find(&results).Error
	return results, err
}

func (s *Service) statistic(ctx context.Context, request *Request, item *DataItem) ([]DataPoint, error) {
	switch item.ID {
	case StatisticTypeDailyTransactionCount:
		return s.dailyTransactionCount(ctx, request)
	case StatisticTypeDailyGmv:
		return s.dailySum(ctx, request, "total_client_pays_cents")
	case StatisticTypeDailyPlatformCommission:
		return s.dailySum(ctx, request, "platform_commission_cents")
	case StatisticTypeCumulativeGmv:
		return s.cumulativeGmv(ctx, request)
	case StatisticTypeTransactionCountByStatus:
		return s.countByStatus(ctx, request)
	default:
		return nil, fmt.Errorf("%w: invalid data item id: %s", ErrInvalidRequest, item.ID)
	}
}

// GetStatistics computes every requested data item concurrently.
func (s *Service) GetStatistics(ctx context.Context, request *Request) (*Response, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan lo.Entry[StatisticType, []DataPoint], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *DataItem) {
			defer wg.Done()
			res, err := s.statistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- lo.Entry[StatisticType, []DataPoint]{Key: di.ID, Value: res}
		}(item)
	}
	wg.Wait()
	close(errChan)
	close(resChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	results := make(map[StatisticType][]DataPoint, len(request.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &Response{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
