package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// Course is a catalog entry. TierRequired gates every read of the course's
// lessons through the access decision.
type Course struct {
	ID           uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Slug         string                 `gorm:"column:slug;not null;uniqueIndex"`
	Title        string                 `gorm:"column:title;not null"`
	Description  string                 `gorm:"column:description;not null;default:''"`
	TierRequired enums.SubscriptionTier `gorm:"column:tier_required;type:subscription_tier;not null;default:'free'"`
	Tags         pq.StringArray         `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	Published    bool                   `gorm:"column:published;not null;default:false"`
	LessonCount  int                    `gorm:"column:lesson_count;not null;default:0"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// Lesson is one unit of a course, ordered by Position.
type Lesson struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CourseID  uuid.UUID `gorm:"column:course_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Position  int       `gorm:"column:position;not null"`
	VideoURL  *string   `gorm:"column:video_url"`
	Duration  int       `gorm:"column:duration_seconds;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
