package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// UserProfile is the canonical member record. subscription_tier is the
// effective tier read by every access decision; it is written only by the
// Stripe webhook sync path, never directly by the member.
type UserProfile struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                string                   `gorm:"type:text;not null;uniqueIndex"`
	FullName             string                   `gorm:"column:full_name;not null"`
	SubscriptionTier     enums.SubscriptionTier   `gorm:"column:subscription_tier;type:subscription_tier;not null;default:'free'"`
	SubscriptionStatus   enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status;not null;default:'none'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;uniqueIndex"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id"`
	// LastBillingEventAt is the provider timestamp of the newest billing
	// event applied to this profile; older replayed events are ignored.
	LastBillingEventAt *time.Time `gorm:"column:last_billing_event_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the historical profiles table name.
func (UserProfile) TableName() string {
	return "profiles"
}
