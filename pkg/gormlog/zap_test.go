package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/partypay/pkg/logctx"
)

func TestCallerPath(t *testing.T) {
	cases := map[string]string{
		"/Users/alex/partypay/internal/platform/db/postgres.go:38": "internal/platform/db/postgres.go:38",
		`C:\work\partypay\pkg\types\common_filter.go:12`:           "pkg/types/common_filter.go:12",
		`D:\a\b\c\d.go:7`: "b/c/d.go:7",
		"/a/b/c/d.go:1":   "b/c/d.go:1",
		"main.go:3":       "main.go:3",
		"":                "",
	}
	for in, want := range cases {
		require.Equal(t, want, callerPath(in), in)
	}
}

func TestTrace_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	quiet := New(zap.New(core).Sugar(), false)
	ctx := context.WithValue(context.Background(), logctx.TraceIDKey, "trace-1")
	sql := func() (string, int64) { return "SELECT 1", 1 }

	quiet.Trace(ctx, time.Now(), sql, nil)
	require.Zero(t, logs.Len())

	quiet.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, "gorm_slow", logs.TakeAll()[0].Message)

	quiet.Trace(ctx, time.Now(), sql, errors.New("boom"))
	entry := logs.TakeAll()[0]
	require.Equal(t, "gorm_trace", entry.Message)
	require.Equal(t, "trace-1", entry.ContextMap()["trace_id"])

	New(zap.New(core).Sugar(), true).Trace(ctx, time.Now(), sql, nil)
	require.Equal(t, "gorm", logs.TakeAll()[0].Message)

	New(zap.New(core).Sugar(), true).LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("boom"))
	require.Zero(t, logs.Len())
}
