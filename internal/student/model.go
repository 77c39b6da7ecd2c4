package student

import (
	"time"

	"github.com/uptrace/bun"
)

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID             int      `bun:"id,pk,autoincrement" json:"id"`
	FirstName      string   `bun:"first_name,notnull" json:"first_name"`
	LastName       string   `bun:"last_name,notnull" json:"last_name"`
	Email          string   `bun:"email,unique,notnull" json:"email"`
	Major          string   `bun:"major,notnull" json:"major"`
	Semester       int      `bun:"semester,notnull" json:"semester"`
	GPA            *float64 `bun:"gpa" json:"gpa"`
	EnrollmentDate string   `bun:"enrollment_date,notnull" json:"enrollment_date"`
	IsActive       bool     `bun:"is_active,default:true" json:"is_active"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Event is published to NATS on student lifecycle changes
type Event struct {
	Type      string    `json:"type"`
	StudentID int       `json:"student_id"`
	Email     string    `json:"email,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventCreated  = "student.created"
	EventDeleted  = "student.deleted"
	EventRestored = "student.restored"
)

// Page is the paginated list response shape
type Page struct {
	Students   []Student `json:"students"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	TotalPages int       `json:"total_pages"`
}
