package models

import (
	"time"

	"github.com/google/uuid"
)

// UniqueRedemptionConstraint is the name Postgres gives the composite
// primary key on coupon_redemptions. A duplicate (user_id, coupon_id)
// insert violates this constraint, which is the authoritative
// already-redeemed signal.
const UniqueRedemptionConstraint = "coupon_redemptions_pkey"

// CouponRedemption is a usage-ledger row: at most one per (user, coupon),
// written once and never updated or deleted.
type CouponRedemption struct {
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CouponID   uuid.UUID `gorm:"column:coupon_id;type:uuid;primaryKey"`
	RedeemedAt time.Time `gorm:"column:redeemed_at;autoCreateTime"`
}
