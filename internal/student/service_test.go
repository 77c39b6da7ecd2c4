package student_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"student-registry/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository for unit tests
type fakeRepo struct {
	students  map[int]student.Student
	nextID    int
	listErr   error
	createErr error
	updateErr error
	updates   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{students: make(map[int]student.Student), nextID: 1}
}

func (f *fakeRepo) List(_ context.Context, page, perPage int, activeOnly bool) ([]student.Student, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}

	var matching []student.Student
	for _, s := range f.students {
		if s.IsActive == activeOnly {
			matching = append(matching, s)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].ID < matching[j].ID })

	total := len(matching)
	offset := (page - 1) * perPage
	if offset >= total {
		return nil, total, nil
	}
	end := offset + perPage
	if end > total {
		end = total
	}
	return matching[offset:end], total, nil
}

func (f *fakeRepo) Create(_ context.Context, s *student.Student) (*student.Student, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.students {
		if existing.Email == s.Email {
			return nil, student.ErrEmailTaken
		}
	}
	s.ID = f.nextID
	f.nextID++
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.students[s.ID] = *s
	return s, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int) (*student.Student, error) {
	s, ok := f.students[id]
	if !ok || !s.IsActive {
		return nil, student.ErrStudentNotFound
	}
	return &s, nil
}

func (f *fakeRepo) GetByIDAnyState(_ context.Context, id int) (*student.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return &s, nil
}

func (f *fakeRepo) UpdateColumns(_ context.Context, s *student.Student, columns []string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.students[s.ID]; !ok {
		return student.ErrStudentNotFound
	}
	s.UpdatedAt = time.Now()
	f.students[s.ID] = *s
	f.updates++
	return nil
}

func (f *fakeRepo) SetActive(_ context.Context, id int, active bool) (bool, error) {
	s, ok := f.students[id]
	if !ok {
		return false, nil
	}
	s.IsActive = active
	s.UpdatedAt = time.Now()
	f.students[id] = s
	return true, nil
}

type fakePublisher struct {
	events []student.Event
}

func (f *fakePublisher) Publish(_ context.Context, event any) error {
	f.events = append(f.events, event.(student.Event))
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (student.Service, *fakeRepo, *fakePublisher) {
	t.Helper()
	repo := newFakeRepo()
	publisher := &fakePublisher{}
	return student.NewService(repo, publisher, testLogger()), repo, publisher
}

func seed(t *testing.T, svc student.Service, email string) *student.Student {
	t.Helper()
	fields := validFields()
	fields["email"] = email
	created, err := svc.CreateStudent(context.Background(), fields)
	require.NoError(t, err)
	return created
}

func TestService_CreateStudent(t *testing.T) {
	ctx := context.Background()

	t.Run("create then read back", func(t *testing.T) {
		svc, _, publisher := newTestService(t)

		created, err := svc.CreateStudent(ctx, validFields())
		require.NoError(t, err)
		assert.Positive(t, created.ID)
		assert.True(t, created.IsActive)

		fetched, err := svc.GetStudentByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", fetched.FirstName)
		assert.Equal(t, "Silva", fetched.LastName)
		assert.Equal(t, "ana@uni.edu", fetched.Email)
		assert.Equal(t, "Medicine", fetched.Major)
		assert.Equal(t, 2, fetched.Semester)
		require.NotNil(t, fetched.GPA)
		assert.InDelta(t, 3.8, *fetched.GPA, 0.001)
		assert.Equal(t, "2025-09-01", fetched.EnrollmentDate)
		assert.True(t, fetched.IsActive)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, student.EventCreated, publisher.events[0].Type)
		assert.Equal(t, created.ID, publisher.events[0].StudentID)
	})

	t.Run("duplicate email fails", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreateStudent(ctx, validFields())
		require.NoError(t, err)

		fields := validFields()
		fields["first_name"] = "Other"
		_, err = svc.CreateStudent(ctx, fields)
		assert.ErrorIs(t, err, student.ErrEmailTaken)
	})

	t.Run("validation failure skips storage", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.createErr = errors.New("must not be reached")

		fields := validFields()
		delete(fields, "email")

		_, err := svc.CreateStudent(ctx, fields)
		var vErr *student.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Empty(t, repo.students)
	})

	t.Run("nil gpa is allowed", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		fields := validFields()
		fields["gpa"] = nil

		created, err := svc.CreateStudent(ctx, fields)
		require.NoError(t, err)
		assert.Nil(t, created.GPA)
	})
}

func TestService_ListStudents(t *testing.T) {
	ctx := context.Background()

	t.Run("pages are disjoint and cover all records", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		emails := []string{"a@uni.edu", "b@uni.edu", "c@uni.edu", "d@uni.edu", "e@uni.edu"}
		for _, email := range emails {
			seed(t, svc, email)
		}

		page1 := svc.ListStudents(ctx, 1, 2, true)
		page2 := svc.ListStudents(ctx, 2, 2, true)
		page3 := svc.ListStudents(ctx, 3, 2, true)

		assert.Equal(t, 5, page1.Total)
		assert.Equal(t, 3, page1.TotalPages)
		assert.Len(t, page1.Students, 2)
		assert.Len(t, page2.Students, 2)
		assert.Len(t, page3.Students, 1)

		seen := make(map[int]bool)
		for _, p := range []*student.Page{page1, page2, page3} {
			for _, s := range p.Students {
				assert.False(t, seen[s.ID], "id %d appeared twice", s.ID)
				seen[s.ID] = true
			}
		}
		assert.Len(t, seen, 5)
	})

	t.Run("total pages math", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		cases := []struct {
			seeded, perPage, want int
		}{
			{0, 10, 0},
			{1, 10, 1},
			{10, 10, 1},
			{11, 10, 2},
		}
		for _, tc := range cases {
			svc, _, _ = newTestService(t)
			for i := 0; i < tc.seeded; i++ {
				seed(t, svc, fmt.Sprintf("s%d@uni.edu", i))
			}
			page := svc.ListStudents(ctx, 1, tc.perPage, true)
			assert.Equal(t, tc.want, page.TotalPages, "seeded=%d per_page=%d", tc.seeded, tc.perPage)
		}
	})

	t.Run("storage failure yields empty page", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		seed(t, svc, "a@uni.edu")
		repo.listErr = errors.New("connection refused")

		page := svc.ListStudents(ctx, 1, 10, true)
		assert.Empty(t, page.Students)
		assert.Equal(t, 0, page.Total)
		assert.Equal(t, 0, page.TotalPages)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 10, page.PerPage)
	})
}

func TestService_UpdateStudent(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update touches only supplied fields", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		created := seed(t, svc, "ana@uni.edu")

		updated, err := svc.UpdateStudent(ctx, created.ID, map[string]any{"major": "Law", "gpa": 3.9})
		require.NoError(t, err)
		assert.Equal(t, "Law", updated.Major)
		require.NotNil(t, updated.GPA)
		assert.InDelta(t, 3.9, *updated.GPA, 0.001)
		assert.Equal(t, "Ana", updated.FirstName)
	})

	t.Run("out-of-range gpa does not mutate the record", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		created := seed(t, svc, "ana@uni.edu")

		_, err := svc.UpdateStudent(ctx, created.ID, map[string]any{"gpa": 5.0})
		var vErr *student.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "GPA must be between 0.0 and 4.0", vErr.Message)

		current, err := svc.GetStudentByID(ctx, created.ID)
		require.NoError(t, err)
		assert.InDelta(t, 3.8, *current.GPA, 0.001)
		assert.Zero(t, repo.updates)
	})

	t.Run("unknown fields are ignored and nothing is written", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		created := seed(t, svc, "ana@uni.edu")

		updated, err := svc.UpdateStudent(ctx, created.ID, map[string]any{"unknown_field": "x"})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Ana", updated.FirstName)
		assert.Zero(t, repo.updates, "no whitelisted field means no write")
		assert.Equal(t, created.UpdatedAt, updated.UpdatedAt)
	})

	t.Run("enrollment_date is not updatable", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		created := seed(t, svc, "ana@uni.edu")

		_, err := svc.UpdateStudent(ctx, created.ID, map[string]any{"enrollment_date": "1999-01-01"})
		require.NoError(t, err)
		assert.Zero(t, repo.updates)

		current, err := svc.GetStudentByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "2025-09-01", current.EnrollmentDate)
	})

	t.Run("update works on a soft-deleted record", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		created := seed(t, svc, "ana@uni.edu")
		require.NoError(t, svc.DeleteStudent(ctx, created.ID))

		updated, err := svc.UpdateStudent(ctx, created.ID, map[string]any{"gpa": 3.9})
		require.NoError(t, err)
		require.NotNil(t, updated.GPA)
		assert.InDelta(t, 3.9, *updated.GPA, 0.001)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.UpdateStudent(ctx, 42, map[string]any{"major": "Law"})
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})
}

func TestService_SoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("delete hides the record, restore brings it back", func(t *testing.T) {
		svc, _, publisher := newTestService(t)
		created := seed(t, svc, "ana@uni.edu")

		require.NoError(t, svc.DeleteStudent(ctx, created.ID))

		_, err := svc.GetStudentByID(ctx, created.ID)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)

		active := svc.ListStudents(ctx, 1, 10, true)
		assert.Empty(t, active.Students)

		inactive := svc.ListStudents(ctx, 1, 10, false)
		require.Len(t, inactive.Students, 1)
		assert.Equal(t, created.ID, inactive.Students[0].ID)

		restored, err := svc.RestoreStudent(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, restored.IsActive)

		fetched, err := svc.GetStudentByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, fetched.ID)

		active = svc.ListStudents(ctx, 1, 10, true)
		assert.Len(t, active.Students, 1)

		types := make([]string, 0, len(publisher.events))
		for _, e := range publisher.events {
			types = append(types, e.Type)
		}
		assert.Equal(t, []string{student.EventCreated, student.EventDeleted, student.EventRestored}, types)
	})

	t.Run("delete unknown id", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.ErrorIs(t, svc.DeleteStudent(ctx, 42), student.ErrStudentNotFound)
	})

	t.Run("restore unknown id", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.RestoreStudent(ctx, 42)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("nil publisher is fine", func(t *testing.T) {
		repo := newFakeRepo()
		svc := student.NewService(repo, nil, testLogger())

		created, err := svc.CreateStudent(ctx, validFields())
		require.NoError(t, err)
		require.NoError(t, svc.DeleteStudent(ctx, created.ID))
	})
}
