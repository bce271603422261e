package types

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

type sqlBuilder struct {
	sql  strings.Builder
	vars []any
}

func (b *sqlBuilder) WriteByte(c byte) error            { return b.sql.WriteByte(c) }
func (b *sqlBuilder) WriteString(s string) (int, error) { return b.sql.WriteString(s) }
func (b *sqlBuilder) WriteQuoted(field any) {
	switch v := field.(type) {
	case clause.Column:
		b.sql.WriteString(v.Name)
	default:
		fmt.Fprint(&b.sql, v)
	}
}
func (b *sqlBuilder) AddVar(_ clause.Writer, vars ...any) {
	for i, v := range vars {
		if i > 0 {
			b.sql.WriteByte(',')
		}
		b.sql.WriteByte('?')
		b.vars = append(b.vars, v)
	}
}
func (b *sqlBuilder) AddError(error) error { return nil }

func build(expr clause.Expression) (string, []any) {
	var b sqlBuilder
	expr.Build(&b)
	return b.sql.String(), b.vars
}

var columns = []string{"status", "currency", "created_at", "total_client_pays_cents"}

func TestCommonFilter_Build(t *testing.T) {
	sql, vars := build(FiltersAnd{
		{Field: "status", Operator: CommonFilterOperatorIn, Values: []any{"ESCROW", "COMPLETED"}},
		{Field: "total_client_pays_cents", Operator: CommonFilterOperatorRange, Values: []any{100, 500}},
	})
	require.Equal(t, "(status IN (?,?) AND (total_client_pays_cents >= ? AND total_client_pays_cents <= ?))", sql)
	require.Equal(t, []any{"ESCROW", "COMPLETED", 100, 500}, vars)

	sql, _ = build(FiltersAnd{
		{Field: "currency", Operator: CommonFilterOperatorEq, Values: []any{"USD"}},
		{Operator: CommonFilterOperatorOr, Filters: []CommonFilter{
			{Field: "status", Operator: CommonFilterOperatorEq, Values: []any{"ESCROW"}},
			{Field: "status", Operator: CommonFilterOperatorEq, Values: []any{"COMPLETED"}},
		}},
	})
	require.Equal(t, "(currency = ? AND (status = ? OR status = ?))", sql)

	sql, _ = build(FiltersAnd(nil))
	require.Equal(t, "1=1", sql)
}

func TestCommonFilter_DateRangeIncludesLastDay(t *testing.T) {
	f := &CommonFilter{Field: "created_at", Operator: CommonFilterOperatorDateRange, Values: []any{"2026-05-01", "2026-05-31"}}
	require.NoError(t, f.Validate(columns))
	sql, vars := build(f)
	require.Equal(t, "(created_at >= ? AND created_at < ?)", sql)
	require.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), vars[1])
}

func TestCommonFilter_Validate(t *testing.T) {
	invalid := []*CommonFilter{
		nil,
		{Field: "extra->>'x'", Operator: CommonFilterOperatorEq, Values: []any{"1"}},
		{Field: "status", Operator: "like", Values: []any{"%"}},
		{Field: "status", Operator: CommonFilterOperatorEq},
		{Field: "status", Operator: CommonFilterOperatorRange, Values: []any{1}},
		{Field: "created_at", Operator: CommonFilterOperatorDateRange, Values: []any{"2026-05-01", "tomorrow"}},
		{Operator: CommonFilterOperatorOr},
		{Operator: CommonFilterOperatorOr, Filters: []CommonFilter{{Field: "password", Operator: CommonFilterOperatorEq, Values: []any{"x"}}}},
	}
	for _, f := range invalid {
		require.ErrorIs(t, f.Validate(columns), ErrInvalidFilter)
	}
	require.NoError(t, ValidateFilters([]*CommonFilter{{Field: "status", Operator: CommonFilterOperatorNotEq, Values: []any{"CANCELLED"}}}, columns))
}
