package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// Coupon is a discount code. Rows are never deleted, only deactivated;
// CurrentRedemptions is mutated solely by the redemption guard's conditional
// increment, which is what keeps it under MaxRedemptions.
type Coupon struct {
	ID            uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	ValidFrom     *time.Time         `gorm:"column:valid_from"`
	ValidUntil    *time.Time         `gorm:"column:valid_until"`
	// MaxRedemptions nil means unlimited.
	MaxRedemptions     *int                    `gorm:"column:max_redemptions"`
	CurrentRedemptions int                     `gorm:"column:current_redemptions;not null;default:0"`
	Active             bool                    `gorm:"column:active;not null;default:true"`
	AppliesToTier      *enums.SubscriptionTier `gorm:"column:applies_to_tier;type:subscription_tier"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
