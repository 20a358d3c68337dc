package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartInvokeSpan starts a client span around one host command
func StartInvokeSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	return StartSpan(ctx, "invoke "+command,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(CommandName(command)),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// BridgeMetrics counts traffic between the client and its host
type BridgeMetrics struct {
	invocations     metric.Int64Counter
	duration        metric.Float64Histogram
	errors          metric.Int64Counter
	droppedPayloads metric.Int64Counter
}

// NewBridgeMetrics creates bridge metrics instruments on the global meter
func NewBridgeMetrics() (*BridgeMetrics, error) {
	return NewBridgeMetricsFor(otel.GetMeterProvider())
}

// NewBridgeMetricsFor creates bridge metrics instruments on provider.
func NewBridgeMetricsFor(provider metric.MeterProvider) (*BridgeMetrics, error) {
	meter := provider.Meter(instrumentationName)

	invocations, err := meter.Int64Counter(
		"picksy.bridge.invocations",
		metric.WithDescription("Total number of host command invocations"),
		metric.WithUnit("{invocations}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"picksy.bridge.duration",
		metric.WithDescription("Host command round trip in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"picksy.bridge.errors",
		metric.WithDescription("Host command invocations that failed"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"picksy.bridge.dropped_payloads",
		metric.WithDescription("Event payloads dropped because they failed validation"),
		metric.WithUnit("{payloads}"),
	)
	if err != nil {
		return nil, err
	}

	return &BridgeMetrics{
		invocations:     invocations,
		duration:        duration,
		errors:          errs,
		droppedPayloads: dropped,
	}, nil
}

// RecordInvocation records one finished command. kind is empty on success.
func (m *BridgeMetrics) RecordInvocation(ctx context.Context, command string, d time.Duration, kind string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(CommandName(command))
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(d.Milliseconds()), attrs)
	if kind != "" {
		m.errors.Add(ctx, 1, metric.WithAttributes(CommandName(command), attribute.String("error.kind", kind)))
	}
}

// RecordDropped records an event payload that failed validation
func (m *BridgeMetrics) RecordDropped(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.droppedPayloads.Add(ctx, 1, metric.WithAttributes(EventName(event)))
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, system string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("db.system", system))
	m.queryCount.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.errorCount.Add(ctx, 1, attrs)
	}
}

// TraceDB wraps sql.DB with tracing. system is the db.system attribute
// ("sqlite" or "postgresql").
type TraceDB struct {
	db      *sql.DB
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}
	return &TraceDB{db: db, system: system, metrics: metrics}, nil
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(ctx, span, start, err)
	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.finish(ctx, span, start, err)
	if err == nil {
		if n, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", n))
		}
	}
	return result, err
}

// QueryRowContext executes a query that returns a single row. The span ends
// before the row is scanned.
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	defer span.End()

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(ctx, span, start, row.Err())
	return row
}

// BeginTx starts a transaction. Statements on the returned tx are not traced.
func (t *TraceDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return t.db.BeginTx(ctx, opts)
}

func (t *TraceDB) finish(ctx context.Context, span trace.Span, start time.Time, err error) {
	d := time.Since(start)
	if err != nil && err != sql.ErrNoRows {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", d.Milliseconds()))
	t.metrics.RecordQuery(ctx, t.system, d, err)
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

// Close closes the underlying database
func (t *TraceDB) Close() error {
	return t.db.Close()
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}
