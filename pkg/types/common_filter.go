package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	// CommonFilterOperatorDateRange takes two YYYY-MM-DD days and includes both.
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
	// CommonFilterOperatorOr matches when any nested filter matches; Field and Values are unused.
	CommonFilterOperatorOr CommonFilterOperator = "or"
)

var ErrInvalidFilter = errors.New("invalid filter")

// CommonFilter is the admin query filter. Field names must be checked with Validate
// before the filter is built into SQL.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
	Filters  []CommonFilter       `json:"filters"`
}

// Validate checks the field against allowed columns and the value count against the operator.
func (f *CommonFilter) Validate(allowed []string) error {
	if f == nil {
		return fmt.Errorf("%w: empty filter", ErrInvalidFilter)
	}
	if f.Operator == CommonFilterOperatorOr {
		if len(f.Filters) == 0 {
			return fmt.Errorf("%w: or needs nested filters", ErrInvalidFilter)
		}
		for i := range f.Filters {
			if err := f.Filters[i].Validate(allowed); err != nil {
				return err
			}
		}
		return nil
	}
	if !lo.Contains(allowed, f.Field) {
		return fmt.Errorf("%w: unsupported field %q", ErrInvalidFilter, f.Field)
	}
	switch f.Operator {
	case CommonFilterOperatorEq, CommonFilterOperatorNotEq, CommonFilterOperatorLt,
		CommonFilterOperatorLte, CommonFilterOperatorGt, CommonFilterOperatorGte:
		if len(f.Values) != 1 {
			return fmt.Errorf("%w: %s takes one value", ErrInvalidFilter, f.Operator)
		}
	case CommonFilterOperatorRange:
		if len(f.Values) != 2 {
			return fmt.Errorf("%w: range takes two values", ErrInvalidFilter)
		}
	case CommonFilterOperatorDateRange:
		if _, _, err := f.dateRange(); err != nil {
			return err
		}
	case CommonFilterOperatorIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("%w: in takes at least one value", ErrInvalidFilter)
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Operator)
	}
	return nil
}

func (f *CommonFilter) dateRange() (time.Time, time.Time, error) {
	if len(f.Values) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range takes two days", ErrInvalidFilter)
	}
	var days [2]time.Time
	for i, v := range f.Values {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date_range values must be YYYY-MM-DD", ErrInvalidFilter)
		}
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		days[i] = d
	}
	return days[0], days[1].AddDate(0, 0, 1), nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if f.Operator == CommonFilterOperatorOr {
		exprs := make([]clause.Expression, 0, len(f.Filters))
		for i := range f.Filters {
			exprs = append(exprs, &f.Filters[i])
		}
		clause.Or(exprs...).Build(builder)
		return
	}
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]
	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		from, to, err := f.dateRange()
		if err != nil {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: from}, clause.Lt{Column: f.Field, Value: to}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	}
}

// FiltersAnd joins filters with AND; no filters matches every row.
type FiltersAnd []*CommonFilter

func (w FiltersAnd) Build(builder clause.Builder) {
	if len(w) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w))
	for _, f := range w {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ValidateFilters runs Validate on each filter.
func ValidateFilters(filters []*CommonFilter, allowed []string) error {
	for _, f := range filters {
		if err := f.Validate(allowed); err != nil {
			return err
		}
	}
	return nil
}
