package coupons

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/pkg/db"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
)

// Repository manages persistence for coupons and their redemption ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	HasRedemption(ctx context.Context, userID, couponID uuid.UUID) (bool, error)
	InsertRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	IncrementIfAvailable(ctx context.Context, couponID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupon repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NormalizeCode uppercases and trims a raw code. Codes are stored uppercased
// so lookups stay index-backed instead of using lower() scans.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("code = ?", NormalizeCode(code)).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = NormalizeCode(coupon.Code)
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) HasRedemption(ctx context.Context, userID, couponID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertRedemption writes one ledger row. The unique (user_id, coupon_id)
// index is the authoritative duplicate check; a violation surfaces as
// ALREADY_REDEEMED regardless of what any earlier read said.
func (r *repository) InsertRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	if err := r.db.WithContext(ctx).Create(redemption).Error; err != nil {
		if db.IsUniqueViolation(err, models.UniqueRedemptionConstraint) {
			return pkgerrors.Wrap(pkgerrors.CodeAlreadyRedeemed, err, "redemption already recorded")
		}
		return err
	}
	return nil
}

// IncrementIfAvailable bumps current_redemptions only while capacity remains.
// The WHERE clause is the whole concurrency story: two racing transactions
// both pass validation, but only one matches the row once the counter is at
// the cap. Returns false when this caller lost that race.
func (r *repository) IncrementIfAvailable(ctx context.Context, couponID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Where("max_redemptions IS NULL OR current_redemptions < max_redemptions").
		UpdateColumn("current_redemptions", gorm.Expr("current_redemptions + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
