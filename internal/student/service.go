package student

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cast"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrEmailTaken      = errors.New("email already exists")
	ErrInvalidInput    = errors.New("invalid input")
)

// updatableFields is the whitelist of columns an update may touch. Any other
// key in the input is silently ignored.
var updatableFields = []string{"first_name", "last_name", "email", "major", "semester", "gpa", "is_active"}

// EventPublisher publishes lifecycle events. A nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

type Service interface {
	ListStudents(ctx context.Context, page, perPage int, activeOnly bool) *Page
	CreateStudent(ctx context.Context, fields map[string]any) (*Student, error)
	GetStudentByID(ctx context.Context, id int) (*Student, error)
	UpdateStudent(ctx context.Context, id int, fields map[string]any) (*Student, error)
	DeleteStudent(ctx context.Context, id int) error
	RestoreStudent(ctx context.Context, id int) (*Student, error)
}

type service struct {
	repo      Repository
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(repo Repository, publisher EventPublisher, logger *slog.Logger) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// ListStudents never fails: a storage error is logged and reported as an
// empty page with zero total (availability over correctness).
func (s *service) ListStudents(ctx context.Context, page, perPage int, activeOnly bool) *Page {
	students, total, err := s.repo.List(ctx, page, perPage, activeOnly)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list students", "error", err)
		students, total = nil, 0
	}
	if students == nil {
		students = []Student{}
	}

	return &Page{
		Students:   students,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages(total, perPage),
	}
}

func (s *service) CreateStudent(ctx context.Context, fields map[string]any) (*Student, error) {
	if err := Validate(fields, false); err != nil {
		return nil, err
	}

	record := &Student{
		EnrollmentDate: cast.ToString(fields["enrollment_date"]),
	}
	applyFields(record, fields)
	// New records are always active regardless of input
	record.IsActive = true

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{Type: EventCreated, StudentID: created.ID, Email: created.Email, At: time.Now()})
	return created, nil
}

func (s *service) GetStudentByID(ctx context.Context, id int) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateStudent applies the whitelisted subset of fields. The lookup is
// active-state blind, so a soft-deleted record can be updated even though a
// direct GET on it reports not found. If no whitelisted field is present, no
// write occurs and the current record is returned unchanged.
func (s *service) UpdateStudent(ctx context.Context, id int, fields map[string]any) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	if err := Validate(fields, true); err != nil {
		return nil, err
	}

	record, err := s.repo.GetByIDAnyState(ctx, id)
	if err != nil {
		return nil, err
	}

	columns := applyFields(record, fields)
	if len(columns) == 0 {
		return record, nil
	}

	if err := s.repo.UpdateColumns(ctx, record, columns); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) DeleteStudent(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrInvalidInput
	}

	existed, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return err
	}
	if !existed {
		return ErrStudentNotFound
	}

	s.publish(ctx, Event{Type: EventDeleted, StudentID: id, At: time.Now()})
	return nil
}

func (s *service) RestoreStudent(ctx context.Context, id int) (*Student, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}

	existed, err := s.repo.SetActive(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, ErrStudentNotFound
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{Type: EventRestored, StudentID: id, Email: record.Email, At: time.Now()})
	return record, nil
}

// publish is best-effort: event delivery never fails the operation
func (s *service) publish(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "type", event.Type, "error", err)
	}
}

// applyFields copies whitelisted input values onto the record and returns
// the column names that were set.
func applyFields(record *Student, fields map[string]any) []string {
	var columns []string
	for _, field := range updatableFields {
		value, ok := fields[field]
		if !ok {
			continue
		}

		switch field {
		case "first_name":
			record.FirstName = cast.ToString(value)
		case "last_name":
			record.LastName = cast.ToString(value)
		case "email":
			record.Email = cast.ToString(value)
		case "major":
			record.Major = cast.ToString(value)
		case "semester":
			record.Semester = cast.ToInt(value)
		case "gpa":
			if value == nil {
				record.GPA = nil
			} else {
				gpa := cast.ToFloat64(value)
				record.GPA = &gpa
			}
		case "is_active":
			record.IsActive = cast.ToBool(value)
		}
		columns = append(columns, field)
	}
	return columns
}

func totalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
