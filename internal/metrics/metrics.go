package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	studentsCreated     metric.Int64Counter
	studentsViewed      metric.Int64Counter
	studentsListViewed  metric.Int64Counter
	studentsUpdated     metric.Int64Counter
	studentsDeactivated metric.Int64Counter
	studentsRestored    metric.Int64Counter

	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.studentsCreated, err = meter.Int64Counter(
		"student_registry.students.created",
		metric.WithDescription("Total number of students created"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsViewed, err = meter.Int64Counter(
		"student_registry.students.viewed",
		metric.WithDescription("Total number of students viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsListViewed, err = meter.Int64Counter(
		"student_registry.students.list_viewed",
		metric.WithDescription("Total number of times the student list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"student_registry.students.updated",
		metric.WithDescription("Total number of student updates"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeactivated, err = meter.Int64Counter(
		"student_registry.students.deactivated",
		metric.WithDescription("Total number of students soft-deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsRestored, err = meter.Int64Counter(
		"student_registry.students.restored",
		metric.WithDescription("Total number of students restored"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.queryErrors, err = meter.Int64Counter(
		"db.query.errors",
		metric.WithDescription("Total number of failed database queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordQuery records duration and outcome of a single database query
func (m *Metrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	if m == nil || m.queryDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.String("db.table", table),
	)

	m.queryDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordStudentCreated(ctx context.Context) {
	if m != nil && m.studentsCreated != nil {
		m.studentsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentViewed(ctx context.Context) {
	if m != nil && m.studentsViewed != nil {
		m.studentsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsListViewed(ctx context.Context) {
	if m != nil && m.studentsListViewed != nil {
		m.studentsListViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentDeactivated(ctx context.Context) {
	if m != nil && m.studentsDeactivated != nil {
		m.studentsDeactivated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentRestored(ctx context.Context) {
	if m != nil && m.studentsRestored != nil {
		m.studentsRestored.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
