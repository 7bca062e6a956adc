package courses

import (
	"time"

	"github.com/google/uuid"

	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// CatalogEntry is one course in the member-facing listing. Locked means the
// member's tier does not reach the course's required tier.
type CatalogEntry struct {
	ID           uuid.UUID              `json:"id"`
	Slug         string                 `json:"slug"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	TierRequired enums.SubscriptionTier `json:"tier_required"`
	Tags         []string               `json:"tags"`
	LessonCount  int                    `json:"lesson_count"`
	Locked       bool                   `json:"locked"`
}

// CatalogPage is a cursor page of catalog entries.
type CatalogPage struct {
	Courses    []CatalogEntry `json:"courses"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// LessonView hides the playable asset behind the tier gate: a locked lesson
// keeps its title and duration visible as a teaser but carries no video URL.
type LessonView struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`
	Duration int       `json:"duration_seconds"`
	VideoURL *string   `json:"video_url,omitempty"`
	Locked   bool      `json:"locked"`
}

// CourseDetail is the full course page.
type CourseDetail struct {
	CatalogEntry
	Lessons []LessonView `json:"lessons"`
}

// Progress reports where a member stands in a course after recording a lesson.
type Progress struct {
	CourseID           uuid.UUID              `json:"course_id"`
	Status             enums.EnrollmentStatus `json:"status"`
	CompletedLessons   int                    `json:"completed_lessons"`
	TotalLessons       int                    `json:"total_lessons"`
	CertificateSerial  string                 `json:"certificate_serial,omitempty"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
}

// CertificateView is a member's earned certificate.
type CertificateView struct {
	CourseID uuid.UUID `json:"course_id"`
	Serial   string    `json:"serial"`
	IssuedAt time.Time `json:"issued_at"`
}
