package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// InvalidReason explains why a coupon failed validation. Checks run in a
// fixed order and the first failure wins, so a response carries exactly one
// reason.
type InvalidReason string

const (
	ReasonNotFound  InvalidReason = "not_found"
	ReasonInactive  InvalidReason = "inactive"
	ReasonExpired   InvalidReason = "expired"
	ReasonExhausted InvalidReason = "exhausted"
)

// ValidationResult is the outcome of checking a code without redeeming it.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Reason InvalidReason  `json:"reason,omitempty"`
	Coupon *CouponSummary `json:"coupon,omitempty"`
}

// CouponSummary is the public shape of a valid coupon. Redemption counters
// stay internal; exposing them would leak campaign sizing.
type CouponSummary struct {
	ID            uuid.UUID               `json:"id"`
	Code          string                  `json:"code"`
	DiscountType  enums.DiscountType      `json:"discount_type"`
	DiscountValue decimal.Decimal         `json:"discount_value"`
	AppliesToTier *enums.SubscriptionTier `json:"applies_to_tier,omitempty"`
	ValidUntil    *time.Time              `json:"valid_until,omitempty"`
}

// RedemptionOutcome reports a successful redemption.
type RedemptionOutcome struct {
	CouponID   uuid.UUID `json:"coupon_id"`
	UserID     uuid.UUID `json:"user_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}
