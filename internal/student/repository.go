package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"student-registry/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Repository interface {
	List(ctx context.Context, page, perPage int, activeOnly bool) ([]Student, int, error)
	Create(ctx context.Context, student *Student) (*Student, error)
	GetByID(ctx context.Context, id int) (*Student, error)
	GetByIDAnyState(ctx context.Context, id int) (*Student, error)
	UpdateColumns(ctx context.Context, student *Student, columns []string) error
	SetActive(ctx context.Context, id int, active bool) (bool, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// List returns one page of students filtered by active state, plus the total
// matching count ignoring pagination.
func (r *repository) List(ctx context.Context, page, perPage int, activeOnly bool) ([]Student, int, error) {
	start := time.Now()
	var students []Student
	total, err := r.db.NewSelect().
		Model(&students).
		Where("is_active = ?", activeOnly).
		Order("id ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		ScanAndCount(ctx)

	r.metrics.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *repository) Create(ctx context.Context, student *Student) (*Student, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(student).Returning("*").Exec(ctx)

	r.metrics.RecordQuery(ctx, "insert", "students", time.Since(start), err)

	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return student, nil
}

// GetByID returns only active students. Inactive records are invisible to
// direct lookup, same as unknown ids.
func (r *repository) GetByID(ctx context.Context, id int) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().
		Model(student).
		Where("id = ?", id).
		Where("is_active = TRUE").
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// GetByIDAnyState looks up a student regardless of active state. Updates use
// this, so a soft-deleted record can still be modified.
func (r *repository) GetByIDAnyState(ctx context.Context, id int) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("id = ?", id).Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "students", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// UpdateColumns writes only the named columns plus updated_at. Values are
// always bound parameters, never interpolated.
func (r *repository) UpdateColumns(ctx context.Context, student *Student, columns []string) error {
	student.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(student).
		Column(columns...).
		Where("id = ?", student.ID).
		Exec(ctx)

	r.metrics.RecordQuery(ctx, "update", "students", time.Since(start), err)

	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return ErrEmailTaken
		}
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// SetActive flips the soft-delete flag for any existing record and reports
// whether the record existed.
func (r *repository) SetActive(ctx context.Context, id int, active bool) (bool, error) {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Student)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.RecordQuery(ctx, "update", "students", time.Since(start), err)

	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
