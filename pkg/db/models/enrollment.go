package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// Enrollment ties a member to a course. CompletedLessonIDs accumulates as
// progress is recorded; the enrollment flips to completed when every lesson
// of the course is present.
type Enrollment struct {
	ID                 uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_enrollments_user_course"`
	CourseID           uuid.UUID              `gorm:"column:course_id;type:uuid;not null;uniqueIndex:uq_enrollments_user_course"`
	Status             enums.EnrollmentStatus `gorm:"column:status;type:enrollment_status;not null;default:'active'"`
	CompletedLessonIDs pq.StringArray         `gorm:"column:completed_lesson_ids;type:text[];not null;default:ARRAY[]::text[]"`
	CompletedAt        *time.Time             `gorm:"column:completed_at"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// SavedCourse bookmarks a course for later; one row per (user, course).
type SavedCourse struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CourseID  uuid.UUID `gorm:"column:course_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Certificate records a completed course. Issued exactly once per
// (user, course); the serial is shown on the rendered certificate.
type Certificate struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_certificates_user_course"`
	CourseID uuid.UUID `gorm:"column:course_id;type:uuid;not null;uniqueIndex:uq_certificates_user_course"`
	Serial   string    `gorm:"column:serial;not null;uniqueIndex"`
	IssuedAt time.Time `gorm:"column:issued_at;autoCreateTime"`
}
