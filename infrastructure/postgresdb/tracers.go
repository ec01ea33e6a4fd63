package postgresdb

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jrazmi/habitsync/sdk/logger"
)

// MultiQueryTracer fans query events out to several tracers.
type MultiQueryTracer struct {
	Tracers []pgx.QueryTracer
}

func NewMultiQueryTracer(tracers ...pgx.QueryTracer) *MultiQueryTracer {
	return &MultiQueryTracer{Tracers: tracers}
}

func (m *MultiQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, t := range m.Tracers {
		ctx = t.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (m *MultiQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, t := range m.Tracers {
		t.TraceQueryEnd(ctx, conn, data)
	}
}

// LoggingQueryTracer writes each statement to the logger at debug level.
type LoggingQueryTracer struct {
	log *logger.Logger
}

func NewLoggingQueryTracer(log *logger.Logger) *LoggingQueryTracer {
	return &LoggingQueryTracer{log: log}
}

var (
	collapseSpace = regexp.MustCompile(`\s+`)
	parenPadding  = regexp.MustCompile(`\s*([()])\s*`)
)

// compactSQL folds a multi-line statement onto one line.
func compactSQL(sql string) string {
	out := collapseSpace.ReplaceAllString(sql, " ")
	out = parenPadding.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

func (l *LoggingQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	l.log.DebugContext(ctx, "query start", "sql", compactSQL(data.SQL), "args", data.Args)
	return ctx
}

func (l *LoggingQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		l.log.ErrorContext(ctx, "query end", "error", data.Err, "command_tag", data.CommandTag.String())
		return
	}
	l.log.DebugContext(ctx, "query end", "command_tag", data.CommandTag.String())
}
