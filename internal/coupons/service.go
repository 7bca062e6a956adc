package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/pkg/db/models"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes coupon validation and redemption.
type Service interface {
	Validate(ctx context.Context, code string) (*ValidationResult, error)
	Redeem(ctx context.Context, userID uuid.UUID, code string) (*RedemptionOutcome, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	billing *metrics.BillingMetrics
	now     func() time.Time
}

// ServiceParams wires the coupon service dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Billing *metrics.BillingMetrics
	Now     func() time.Time
}

// NewService builds a coupon service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		billing: params.Billing,
		now:     now,
	}, nil
}

// Validate checks a code without consuming it. The checks run in a fixed
// order (existence, active, time window, exhaustion) and the first failure
// is the reported reason.
func (s *service) Validate(ctx context.Context, code string) (*ValidationResult, error) {
	if NormalizeCode(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationResult{Valid: false, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	if reason := s.invalidReason(coupon); reason != "" {
		return &ValidationResult{Valid: false, Reason: reason}, nil
	}

	return &ValidationResult{Valid: true, Coupon: summarize(coupon)}, nil
}

// invalidReason applies the ordered checks after existence. Empty string
// means the coupon is redeemable right now.
func (s *service) invalidReason(coupon *models.Coupon) InvalidReason {
	if !coupon.Active {
		return ReasonInactive
	}

	now := s.now().UTC()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return ReasonExpired
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return ReasonExpired
	}

	if coupon.MaxRedemptions != nil && coupon.CurrentRedemptions >= *coupon.MaxRedemptions {
		return ReasonExhausted
	}

	return ""
}

// Redeem consumes one use of the coupon for the member. The ledger insert and
// the conditional counter increment commit together or not at all, so the
// counter can never exceed the cap and a member can never hold two ledger
// rows for the same coupon.
func (s *service) Redeem(ctx context.Context, userID uuid.UUID, code string) (*RedemptionOutcome, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	result, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		s.countRedemption("invalid")
		return nil, validationError(result.Reason)
	}

	redemption := &models.CouponRedemption{
		UserID:     userID,
		CouponID:   result.Coupon.ID,
		RedeemedAt: s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.InsertRedemption(ctx, redemption); err != nil {
			return err
		}

		ok, err := repo.IncrementIfAvailable(ctx, result.Coupon.ID)
		if err != nil {
			return err
		}
		if !ok {
			// validated above, so capacity vanished between the read and
			// this update: a concurrent redemption took the last slot
			return pkgerrors.New(pkgerrors.CodeRaceLost, "coupon exhausted during redemption")
		}
		return nil
	})
	if err != nil {
		s.countRedemptionError(err)
		return nil, err
	}

	s.countRedemption("success")
	return &RedemptionOutcome{
		CouponID:   redemption.CouponID,
		UserID:     redemption.UserID,
		RedeemedAt: redemption.RedeemedAt,
	}, nil
}

func validationError(reason InvalidReason) error {
	switch reason {
	case ReasonNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	case ReasonExhausted:
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon exhausted").WithDetails(map[string]any{"reason": string(reason)})
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon not redeemable").WithDetails(map[string]any{"reason": string(reason)})
	}
}

func (s *service) countRedemption(outcome string) {
	if s.billing != nil {
		s.billing.IncRedemption(outcome)
	}
}

func (s *service) countRedemptionError(err error) {
	appErr := pkgerrors.As(err)
	if appErr == nil {
		s.countRedemption("error")
		return
	}
	switch appErr.Code() {
	case pkgerrors.CodeAlreadyRedeemed:
		s.countRedemption("already_redeemed")
	case pkgerrors.CodeRaceLost:
		s.countRedemption("race_lost")
	default:
		s.countRedemption("error")
	}
}

func summarize(coupon *models.Coupon) *CouponSummary {
	return &CouponSummary{
		ID:            coupon.ID,
		Code:          coupon.Code,
		DiscountType:  coupon.DiscountType,
		DiscountValue: coupon.DiscountValue,
		AppliesToTier: coupon.AppliesToTier,
		ValidUntil:    coupon.ValidUntil,
	}
}
